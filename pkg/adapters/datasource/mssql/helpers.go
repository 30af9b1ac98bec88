package mssql

import "strings"

const defaultSchema = "dbo"

// parseSchemaTable splits schema.table or [schema].[table]. A dot inside
// brackets belongs to the name. Without a schema part the schema is dbo.
func parseSchemaTable(name string) (schema, table string) {
	var parts []string
	var cur strings.Builder
	bracketed := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '[' && !bracketed:
			bracketed = true
		case c == ']' && bracketed:
			if i+1 < len(name) && name[i+1] == ']' {
				cur.WriteByte(']')
				i++
				continue
			}
			bracketed = false
		case c == '.' && !bracketed && len(parts) == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if len(parts) == 0 {
		return defaultSchema, cur.String()
	}
	return parts[0], cur.String()
}

// quoteName brackets an identifier the way QUOTENAME() does.
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

func buildFullyQualifiedName(schema, table string) string {
	return quoteName(schema) + "." + quoteName(table)
}
