// Package dbtable names tables inside a database.
package dbtable

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
)

type Name struct {
	Schema tree.Name
	Table  tree.Name
}

// ParseName reads a relation name of the form table or schema.table.
// Double quotes may be used around either part to include dots.
func ParseName(s string) (Name, error) {
	parts, err := splitQuoted(strings.TrimSpace(s))
	if err != nil {
		return Name{}, errors.Wrapf(err, "invalid table name %q", s)
	}
	switch len(parts) {
	case 1:
		return Name{Table: tree.Name(parts[0])}, nil
	case 2:
		return Name{Schema: tree.Name(parts[0]), Table: tree.Name(parts[1])}, nil
	}
	return Name{}, errors.Newf("invalid table name %q: expected table or schema.table", s)
}

func splitQuoted(s string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && inQuotes && i+1 < len(s) && s[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == '.' && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, errors.New("unterminated quote")
	}
	parts = append(parts, cur.String())
	for _, p := range parts {
		if p == "" {
			return nil, errors.New("empty name part")
		}
	}
	return parts, nil
}

func (n Name) HasSchema() bool {
	return n.Schema != ""
}

func (n Name) MakeTableName() tree.TableName {
	if !n.HasSchema() {
		return tree.MakeUnqualifiedTableName(n.Table)
	}
	return tree.MakeTableNameFromPrefix(tree.ObjectNamePrefix{
		SchemaName:     n.Schema,
		ExplicitSchema: true,
	}, n.Table)
}

func (n Name) NewTableName() *tree.TableName {
	tn := n.MakeTableName()
	return &tn
}

func (n Name) SafeString() string {
	if !n.HasSchema() {
		return string(n.Table)
	}
	return fmt.Sprintf("%s.%s", n.Schema, n.Table)
}

func (n Name) String() string {
	return n.SafeString()
}
