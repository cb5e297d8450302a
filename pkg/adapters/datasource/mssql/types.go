package mssql

import "strings"

// sqlServerTypes normalizes SQL Server type names to the portable names
// used across connectors. Unlisted types pass through lowercased.
var sqlServerTypes = map[string]string{
	"tinyint":          "smallint",
	"smallint":         "smallint",
	"int":              "integer",
	"bigint":           "bigint",
	"decimal":          "numeric",
	"numeric":          "numeric",
	"money":            "money",
	"smallmoney":       "money",
	"float":            "double precision",
	"real":             "real",
	"char":             "char",
	"nchar":            "char",
	"varchar":          "varchar",
	"nvarchar":         "varchar",
	"text":             "text",
	"ntext":            "text",
	"binary":           "bytea",
	"varbinary":        "bytea",
	"image":            "blob",
	"date":             "date",
	"time":             "time",
	"datetime":         "timestamp",
	"datetime2":        "timestamp",
	"smalldatetime":    "timestamp",
	"datetimeoffset":   "timestamptz",
	"bit":              "boolean",
	"uniqueidentifier": "uuid",
	"json":             "json",
	"xml":              "xml",
}

func mapSQLServerType(sqlServerType string) string {
	t := strings.ToLower(sqlServerType)
	if mapped, ok := sqlServerTypes[t]; ok {
		return mapped
	}
	return t
}
