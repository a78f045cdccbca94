package schema

import (
	"sort"
	"strings"
)

// TableDescriptor is the in-memory form of one table definition. Column,
// key and constraint order is preserved from the parsed text because it is
// semantically significant: column order determines physical layout and the
// placement of ADD COLUMN statements.
type TableDescriptor struct {
	Name    string
	Comment string
	Engine  string
	// Options keeps everything from the trailing table clause except the
	// engine and comment, opaque and unparsed.
	Options string

	Columns    []string
	ColumnDefs map[string]string

	Keys    []string
	KeyDefs map[string]string

	Constraints    []string
	ConstraintDefs map[string]Constraint

	PrimaryKey []string
}

// Constraint describes one foreign-key constraint.
type Constraint struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	// Options is the opaque trailing clause, e.g. "ON DELETE CASCADE".
	Options string
}

// NewTableDescriptor returns an empty descriptor with maps allocated.
func NewTableDescriptor(name string) *TableDescriptor {
	return &TableDescriptor{
		Name:           name,
		ColumnDefs:     map[string]string{},
		KeyDefs:        map[string]string{},
		ConstraintDefs: map[string]Constraint{},
	}
}

// HasColumn reports whether the table defines the named column.
func (d *TableDescriptor) HasColumn(name string) bool {
	_, ok := d.ColumnDefs[name]
	return ok
}

// IsPrimaryKey reports whether the named column is part of the primary key.
func (d *TableDescriptor) IsPrimaryKey(name string) bool {
	for _, c := range d.PrimaryKey {
		if c == name {
			return true
		}
	}
	return false
}

// SortKeys reorders the key sequence alphabetically. Serialization follows
// stored order, so callers wanting deterministic files sort first.
func (d *TableDescriptor) SortKeys() {
	sort.Strings(d.Keys)
}

// WithoutConstraints returns a shallow copy with no constraints, used to
// build CREATE TABLE statements whose foreign keys are applied separately.
func (d *TableDescriptor) WithoutConstraints() *TableDescriptor {
	cp := *d
	cp.Constraints = nil
	cp.ConstraintDefs = map[string]Constraint{}
	return &cp
}

// Equal reports structural equality of two descriptors.
func (d *TableDescriptor) Equal(o *TableDescriptor) bool {
	if d.Name != o.Name || d.Comment != o.Comment || d.Engine != o.Engine || d.Options != o.Options {
		return false
	}
	if !equalStrings(d.Columns, o.Columns) || !equalStrings(d.Keys, o.Keys) ||
		!equalStrings(d.Constraints, o.Constraints) || !equalStrings(d.PrimaryKey, o.PrimaryKey) {
		return false
	}
	for name, def := range d.ColumnDefs {
		if o.ColumnDefs[name] != def {
			return false
		}
	}
	for name, def := range d.KeyDefs {
		if o.KeyDefs[name] != def {
			return false
		}
	}
	for name, c := range d.ConstraintDefs {
		if !c.Equal(o.ConstraintDefs[name]) {
			return false
		}
	}
	return true
}

// Equal reports structural equality: name, column lists, referenced
// table/columns and the cascade options all have to match.
func (c Constraint) Equal(o Constraint) bool {
	return c.Name == o.Name &&
		c.RefTable == o.RefTable &&
		c.Options == o.Options &&
		equalStrings(c.Columns, o.Columns) &&
		equalStrings(c.RefColumns, o.RefColumns)
}

// TypeFamily buckets column types into the three comparable families used
// when deciding whether a column modification is safe to propose.
type TypeFamily int

const (
	FamilyUnknown TypeFamily = iota
	FamilyNumeric
	FamilyTime
	FamilyString
)

func (f TypeFamily) String() string {
	switch f {
	case FamilyNumeric:
		return "numeric"
	case FamilyTime:
		return "datetime"
	case FamilyString:
		return "string"
	default:
		return "unknown"
	}
}

// FamilyOf classifies a column definition string by its leading type token.
func FamilyOf(def string) TypeFamily {
	tok := strings.ToLower(def)
	if i := strings.IndexAny(tok, " ("); i >= 0 {
		tok = tok[:i]
	}
	switch tok {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"decimal", "numeric", "float", "double", "bit", "boolean", "bool":
		return FamilyNumeric
	case "date", "datetime", "timestamp", "time", "year":
		return FamilyTime
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext",
		"enum", "set", "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		return FamilyString
	default:
		return FamilyUnknown
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
