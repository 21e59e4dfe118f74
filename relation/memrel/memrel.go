// Package memrel is an in-memory relation.Source, used by tests and for
// comparing small fixtures.
package memrel

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/datadiff/relation"
	"github.com/cockroachdb/datadiff/rowvalue"
	"github.com/cockroachdb/errors"
)

// NullMarker is the cell text parsed as a true null by ParseCSV.
const NullMarker = `\N`

type Op string

const (
	OpRowCount Op = "rowcount"
	OpSchema   Op = "schema"
	OpScan     Op = "scan"
)

type Relation struct {
	Columns []relation.Column
	Rows    []rowvalue.Row
}

type Source struct {
	mu struct {
		sync.Mutex
		relations map[string]Relation
		errs      map[string]map[Op]error
	}
}

var _ relation.Source = (*Source)(nil)

func New() *Source {
	s := &Source{}
	s.mu.relations = make(map[string]Relation)
	s.mu.errs = make(map[string]map[Op]error)
	return s
}

// Put registers or replaces a relation.
func (s *Source) Put(name string, rel Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.relations[name] = rel
}

// InjectError makes the given operation on the relation fail with err. For
// OpScan the error surfaces from the iterator after the first row.
func (s *Source) InjectError(name string, op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.errs[name] == nil {
		s.mu.errs[name] = make(map[Op]error)
	}
	s.mu.errs[name][op] = err
}

func (s *Source) get(name string, op Op) (Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mu.errs[name][op]; err != nil && op != OpScan {
		return Relation{}, err
	}
	rel, ok := s.mu.relations[name]
	if !ok {
		return Relation{}, errors.Wrapf(relation.ErrNotFound, "relation %s", name)
	}
	return rel, nil
}

func (s *Source) RowCount(ctx context.Context, name string) (int64, error) {
	rel, err := s.get(name, OpRowCount)
	if err != nil {
		return 0, err
	}
	return int64(len(rel.Rows)), nil
}

func (s *Source) Schema(ctx context.Context, name string) ([]relation.Column, error) {
	rel, err := s.get(name, OpSchema)
	if err != nil {
		return nil, err
	}
	return append([]relation.Column(nil), rel.Columns...), nil
}

func (s *Source) Scan(ctx context.Context, name string, columns []string) (relation.Iterator, error) {
	rel, err := s.get(name, OpScan)
	if err != nil {
		return nil, err
	}
	positions, err := relation.Project(rel.Columns, columns)
	if err != nil {
		return nil, errors.Wrapf(err, "error scanning %s", name)
	}
	s.mu.Lock()
	scanErr := s.mu.errs[name][OpScan]
	s.mu.Unlock()
	return &iterator{rows: rel.Rows, positions: positions, failAfterFirst: scanErr}, nil
}

type iterator struct {
	rows      []rowvalue.Row
	positions []int
	cursor    int

	failAfterFirst error
	err            error
}

func (it *iterator) HasNext(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.failAfterFirst != nil && it.cursor > 0 {
		it.err = it.failAfterFirst
		return false
	}
	return it.cursor < len(it.rows)
}

func (it *iterator) Next(ctx context.Context) rowvalue.Row {
	row := it.rows[it.cursor]
	it.cursor++
	ret := make(rowvalue.Row, len(it.positions))
	for i, p := range it.positions {
		if p < len(row) {
			ret[i] = row[p]
		}
	}
	return ret
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Close() {}

// ParseCSV reads a relation from CSV text. The first record is the header;
// a header cell of the form name:type declares a column type. Cells equal to
// NullMarker are true nulls.
func ParseCSV(text string) (Relation, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return Relation{}, errors.Wrap(err, "error reading header")
	}
	var rel Relation
	for _, h := range header {
		col := relation.Column{Name: strings.TrimSpace(h), Type: "TEXT"}
		if name, typ, ok := strings.Cut(col.Name, ":"); ok {
			col.Name, col.Type = name, typ
		}
		rel.Columns = append(rel.Columns, col)
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Relation{}, errors.Wrap(err, "error reading record")
		}
		if len(rec) != len(header) {
			return Relation{}, errors.Newf("expected %d fields, got %d: %v", len(header), len(rec), rec)
		}
		row := make(rowvalue.Row, len(rec))
		for i, cell := range rec {
			if cell == NullMarker {
				row[i] = rowvalue.Null()
				continue
			}
			row[i] = rowvalue.Of(cell)
		}
		rel.Rows = append(rel.Rows, row)
	}
	return rel, nil
}
