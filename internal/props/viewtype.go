package props

import "fmt"

// ViewType is a way of presenting a table
type ViewType int

const (
	ViewSpreadsheet ViewType = iota
	ViewList
	ViewMap
	ViewGraph
)

// AllViewTypes lists every view type in display order
var AllViewTypes = []ViewType{ViewSpreadsheet, ViewList, ViewMap, ViewGraph}

// String returns the stored name of the view type
func (v ViewType) String() string {
	switch v {
	case ViewSpreadsheet:
		return "SPREADSHEET"
	case ViewList:
		return "LIST"
	case ViewMap:
		return "MAP"
	case ViewGraph:
		return "GRAPH"
	default:
		return fmt.Sprintf("ViewType(%d)", int(v))
	}
}

// ParseViewType converts a stored name into a ViewType. Names are case sensitive.
func ParseViewType(s string) (ViewType, error) {
	for _, v := range AllViewTypes {
		if v.String() == s {
			return v, nil
		}
	}
	return ViewSpreadsheet, fmt.Errorf("unknown view type: %q", s)
}
