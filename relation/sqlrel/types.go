package sqlrel

import (
	"strings"

	"github.com/lib/pq/oid"
)

// mysqlDataTypeOID maps an information_schema DATA_TYPE to the closest
// PostgreSQL type so column types read the same from either dialect.
func mysqlDataTypeOID(dataType string) oid.Oid {
	switch strings.ToLower(dataType) {
	case "integer", "int", "mediumint":
		return oid.T_int4
	case "smallint", "tinyint":
		return oid.T_int2
	case "bigint":
		return oid.T_int8
	case "decimal", "numeric":
		return oid.T_numeric
	case "float":
		return oid.T_float4
	case "double":
		return oid.T_float8
	case "bit":
		return oid.T_varbit
	case "date":
		return oid.T_date
	case "datetime":
		return oid.T_timestamp
	case "timestamp":
		return oid.T_timestamptz
	case "time":
		return oid.T_time
	case "char":
		return oid.T_bpchar
	case "varchar":
		return oid.T_varchar
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return oid.T_bytea
	case "json":
		return oid.T_jsonb
	}
	return oid.T_text
}

func mysqlColumnType(dataType string) string {
	if name, ok := oid.TypeName[mysqlDataTypeOID(dataType)]; ok {
		return name
	}
	return "TEXT"
}

func pgColumnType(dataType string) string {
	return strings.ToUpper(dataType)
}
