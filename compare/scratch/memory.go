package scratch

import (
	"context"

	"github.com/cockroachdb/datadiff/rowvalue"
)

type memoryStore struct{}

// NewMemoryStore returns a Store holding everything in memory.
func NewMemoryStore(ctx context.Context) (Store, error) {
	return memoryStore{}, nil
}

var _ Factory = NewMemoryStore

func (memoryStore) NewRowIndex(ctx context.Context) (RowIndex, error) {
	return &memoryRowIndex{entries: make(map[string]*memoryRow)}, nil
}

func (memoryStore) NewTally(ctx context.Context) (Tally, error) {
	return &memoryTally{entries: make(map[string]*memoryCount)}, nil
}

func (memoryStore) Close() error {
	return nil
}

type memoryRow struct {
	row   rowvalue.Row
	taken bool
}

type memoryRowIndex struct {
	entries map[string]*memoryRow
	order   []string
}

func (m *memoryRowIndex) Put(ctx context.Context, key string, row rowvalue.Row) (bool, error) {
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = &memoryRow{row: row}
	m.order = append(m.order, key)
	return true, nil
}

func (m *memoryRowIndex) Take(ctx context.Context, key string) (rowvalue.Row, bool, error) {
	e, ok := m.entries[key]
	if !ok || e.taken {
		return nil, false, nil
	}
	e.taken = true
	row := e.row
	e.row = nil
	return row, true, nil
}

func (m *memoryRowIndex) Remaining(
	ctx context.Context, fn func(key string, row rowvalue.Row) error,
) error {
	for _, k := range m.order {
		if e := m.entries[k]; !e.taken {
			if err := fn(k, e.row); err != nil {
				return err
			}
		}
	}
	return nil
}

type memoryCount struct {
	count  int64
	marked bool
}

type memoryTally struct {
	entries map[string]*memoryCount
	order   []string
}

func (m *memoryTally) Add(ctx context.Context, key string) (int64, error) {
	e, ok := m.entries[key]
	if !ok {
		e = &memoryCount{}
		m.entries[key] = e
		m.order = append(m.order, key)
	}
	e.count++
	return e.count, nil
}

func (m *memoryTally) Mark(ctx context.Context, key string) (bool, error) {
	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	e.marked = true
	return true, nil
}

func (m *memoryTally) Unmarked(
	ctx context.Context, fn func(key string, count int64) error,
) error {
	for _, k := range m.order {
		if e := m.entries[k]; !e.marked {
			if err := fn(k, e.count); err != nil {
				return err
			}
		}
	}
	return nil
}
