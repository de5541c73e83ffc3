package models

// ForeignKey is one referencing column read from a live database catalog.
type ForeignKey struct {
	TableName            string `json:"table_name"`
	ColumnName           string `json:"column_name"`
	ReferencedTableName  string `json:"referenced_table_name"`
	ReferencedColumnName string `json:"referenced_column_name"`
	ConstraintName       string `json:"constraint_name"`
}

// PrecedenceViolation reports a reference the curated precedence list does
// not honour: the target is listed after the referencing entity, or not
// listed at all.
type PrecedenceViolation struct {
	Entity   string `json:"entity"`
	Field    string `json:"field"`
	Target   string `json:"target"`
	Unlisted bool   `json:"unlisted"`
	Message  string `json:"message"`
}
