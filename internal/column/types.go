// Package column describes the columns of a table and keeps a lazily
// reloaded catalog of them.
package column

import "fmt"

// Type is the element type of a column
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeNumber
	TypeBool

	// Temporal types, stored as text
	TypeDate
	TypeDateTime
	TypeTime

	// Composite types, never stored directly
	TypeGeopoint
	TypeMimeURI

	// References to files relative to the table or app
	TypeRowPath
	TypeConfigPath

	TypeArray
	TypeObject
)

var typeNames = map[Type]string{
	TypeString:     "string",
	TypeInteger:    "integer",
	TypeNumber:     "number",
	TypeBool:       "bool",
	TypeDate:       "date",
	TypeDateTime:   "dateTime",
	TypeTime:       "time",
	TypeGeopoint:   "geopoint",
	TypeMimeURI:    "mimeUri",
	TypeRowPath:    "rowpath",
	TypeConfigPath: "configpath",
	TypeArray:      "array",
	TypeObject:     "object",
}

// String returns the string representation of the type
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType converts a type name into a Type
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeString, fmt.Errorf("unknown column type: %s", s)
}

// IsNumeric reports whether values of the type are integers or numbers
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeNumber
}

// IsTemporal reports whether the type holds a date, time or both
func (t Type) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime || t == TypeTime
}

// SQLType returns the row-storage column type used for the type
func (t Type) SQLType() string {
	switch t {
	case TypeInteger, TypeBool:
		return "INTEGER"
	case TypeNumber:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
