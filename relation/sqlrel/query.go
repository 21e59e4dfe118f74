package sqlrel

import (
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/datadiff/dbtable"
	"github.com/cockroachdb/errors"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/model"
)

const pgColumnsQuery = `SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE lower(table_name) = lower($1)
AND (($2 = '' AND table_schema = current_schema()) OR lower(table_schema) = lower($2))
ORDER BY table_schema, table_name, ordinal_position`

const mysqlColumnsQuery = `SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE lower(table_name) = lower(?)
AND ((? = '' AND table_schema = DATABASE()) OR lower(table_schema) = lower(?))
ORDER BY table_schema, table_name, ordinal_position`

func pgCountQuery(name dbtable.Name) string {
	return "SELECT count(*) FROM " + tree.AsString(name.NewTableName())
}

// pgScanQuery casts every column to text so values arrive in the server's
// canonical text form regardless of type.
func pgScanQuery(name dbtable.Name, columns []string) string {
	f := tree.NewFmtCtx(tree.FmtSimple)
	f.WriteString("SELECT ")
	for i, col := range columns {
		if i > 0 {
			f.WriteString(", ")
		}
		n := tree.Name(col)
		f.FormatNode(&n)
		f.WriteString("::TEXT")
	}
	f.WriteString(" FROM ")
	f.FormatNode(name.NewTableName())
	return f.CloseAndGetString()
}

func mysqlTableName(name dbtable.Name) *ast.TableName {
	return &ast.TableName{
		Schema: model.NewCIStr(string(name.Schema)),
		Name:   model.NewCIStr(string(name.Table)),
	}
}

func mysqlColumnField(name string) *ast.ColumnNameExpr {
	return &ast.ColumnNameExpr{
		Name: &ast.ColumnName{
			Name: model.NewCIStr(name),
		},
	}
}

func restoreMySQL(node ast.Node) (string, error) {
	var sb strings.Builder
	if err := node.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return "", errors.Wrap(err, "error generating MySQL statement")
	}
	return sb.String(), nil
}

func mysqlCountQuery(name dbtable.Name) (string, error) {
	tn, err := restoreMySQL(mysqlTableName(name))
	if err != nil {
		return "", err
	}
	return "SELECT COUNT(*) FROM " + tn, nil
}

func mysqlScanQuery(name dbtable.Name, columns []string) (string, error) {
	fields := &ast.FieldList{
		Fields: make([]*ast.SelectField, len(columns)),
	}
	for i, col := range columns {
		fields.Fields[i] = &ast.SelectField{
			Expr: mysqlColumnField(col),
		}
	}
	return restoreMySQL(&ast.SelectStmt{
		SelectStmtOpts: &ast.SelectStmtOpts{
			SQLCache: true,
		},
		From: &ast.TableRefsClause{
			TableRefs: &ast.Join{
				Left: &ast.TableSource{
					Source: mysqlTableName(name),
				},
			},
		},
		Fields: fields,
		Kind:   ast.SelectStmtKindSelect,
	})
}
