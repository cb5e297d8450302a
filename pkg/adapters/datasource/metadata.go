package datasource

// DiscoveredSchema is everything a connect step learns about a source.
type DiscoveredSchema struct {
	Tables        []TableMetadata
	Relationships []ForeignKeyMetadata
	RecordCount   int64
}

// TableMetadata represents a discovered table or collection.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64
	Columns    []ColumnMetadata
}

// ColumnMetadata represents a discovered column or document field.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
	Description     string
}

// ForeignKeyMetadata represents a discovered foreign key constraint.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}

// TotalRows sums the row counts of all tables.
func (s *DiscoveredSchema) TotalRows() int64 {
	var total int64
	for _, t := range s.Tables {
		total += t.RowCount
	}
	return total
}
