// Package viewcap decides which views a table can be shown in and
// classifies its columns for the map and graph views.
package viewcap

import (
	"context"
	"sort"
	"strings"

	"github.com/conduit-lang/tablemeta/internal/column"
	"github.com/conduit-lang/tablemeta/internal/props"
)

// ViewTypes reports which view types are legal for a table
type ViewTypes struct {
	Spreadsheet bool
	List        bool
	Map         bool
	Graph       bool
}

// Allowed returns the legal view types in display order
func (v ViewTypes) Allowed() []props.ViewType {
	var out []props.ViewType
	for _, vt := range props.AllViewTypes {
		if v.Allows(vt) {
			out = append(out, vt)
		}
	}
	return out
}

// Allows reports whether vt is legal
func (v ViewTypes) Allows(vt props.ViewType) bool {
	switch vt {
	case props.ViewSpreadsheet:
		return v.Spreadsheet
	case props.ViewList:
		return v.List
	case props.ViewMap:
		return v.Map
	case props.ViewGraph:
		return v.Graph
	default:
		return false
	}
}

// EnsureLegal returns vt when types allows it and the spreadsheet view
// otherwise.
func EnsureLegal(vt props.ViewType, types ViewTypes) props.ViewType {
	if types.Allows(vt) {
		return vt
	}
	return props.ViewSpreadsheet
}

// Possible computes the legal view types from a table's columns. The
// spreadsheet view is always legal, the list view needs a configured list
// view file, the graph view a persisted numeric column and the map view a
// geopoint or a persisted latitude or longitude column.
func Possible(cols []column.Definition, listViewConfigured bool) ViewTypes {
	geopoints := GeopointColumns(cols)

	types := ViewTypes{
		Spreadsheet: true,
		List:        listViewConfigured,
		Map:         len(geopoints) > 0,
	}
	for _, c := range cols {
		if !c.UnitOfRetention {
			continue
		}
		if c.Type.IsNumeric() {
			types.Graph = true
		}
		if !types.Map && (IsLatitudeColumn(geopoints, c) || IsLongitudeColumn(geopoints, c)) {
			types.Map = true
		}
	}
	return types
}

// ForTable computes the legal view types of tp.
func ForTable(ctx context.Context, tp *props.TableProperties) (ViewTypes, error) {
	cols, err := tp.Columns(ctx)
	if err != nil {
		return ViewTypes{}, err
	}
	_, listConfigured := tp.ListViewFileName()
	return Possible(cols, listConfigured), nil
}

// GeopointColumns returns the geopoint columns of cols.
func GeopointColumns(cols []column.Definition) []column.Definition {
	var out []column.Definition
	for _, c := range cols {
		if c.Type == column.TypeGeopoint {
			out = append(out, c)
		}
	}
	return out
}

// IsLatitudeColumn reports whether c holds latitudes: a numeric column that
// is either the latitude element of a geopoint or whose name ends in
// "latitude" after its last space or underscore.
func IsLatitudeColumn(geopoints []column.Definition, c column.Definition) bool {
	return isCoordinate(geopoints, c, column.LatitudeElement)
}

// IsLongitudeColumn is the longitude counterpart of IsLatitudeColumn.
func IsLongitudeColumn(geopoints []column.Definition, c column.Definition) bool {
	return isCoordinate(geopoints, c, column.LongitudeElement)
}

func isCoordinate(geopoints []column.Definition, c column.Definition, element string) bool {
	if !c.Type.IsNumeric() {
		return false
	}
	if c.HasParent() && c.ElementName == element {
		for _, g := range geopoints {
			if g.ElementKey == c.ParentKey {
				return true
			}
		}
	}
	return strings.EqualFold(lastWord(c.ElementName), element)
}

// lastWord returns the part of name after its last space or underscore.
func lastWord(name string) string {
	if i := strings.LastIndexAny(name, " _"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Classification groups columns by the views that can use them
type Classification struct {
	Number   []column.Definition
	Location []column.Definition
	Date     []column.Definition
}

// Classify sorts cols into numeric, location and date columns. Numeric
// coordinates count as both numeric and location columns. Each group is
// ordered by element key.
func Classify(cols []column.Definition) Classification {
	geopoints := GeopointColumns(cols)
	coordinate := func(c column.Definition) bool {
		return IsLatitudeColumn(geopoints, c) || IsLongitudeColumn(geopoints, c)
	}

	var out Classification
	for _, c := range sortedByKey(cols) {
		switch {
		case c.Type.IsNumeric():
			out.Number = append(out.Number, c)
			if coordinate(c) {
				out.Location = append(out.Location, c)
			}
		case c.Type == column.TypeGeopoint:
			out.Location = append(out.Location, c)
		case c.Type.IsTemporal():
			out.Date = append(out.Date, c)
		}
	}
	return out
}

// Element names of a media attachment group
const (
	URIFragmentElement = "uriFragment"
	ContentTypeElement = "contentType"
)

// URIColumns returns the media attachment groups of cols: the composite
// columns owning both a rowpath uriFragment and a contentType element,
// ordered by element key.
func URIColumns(cols []column.Definition) []column.Definition {
	byKey := make(map[string]column.Definition, len(cols))
	fragments := make(map[string]bool)
	contentTypes := make(map[string]bool)
	for _, c := range cols {
		byKey[c.ElementKey] = c
		if !c.HasParent() {
			continue
		}
		if c.ElementName == URIFragmentElement && c.Type == column.TypeRowPath {
			fragments[c.ParentKey] = true
		}
		if c.ElementName == ContentTypeElement {
			contentTypes[c.ParentKey] = true
		}
	}

	var out []column.Definition
	for key := range fragments {
		parent, ok := byKey[key]
		if ok && contentTypes[key] {
			out = append(out, parent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementKey < out[j].ElementKey })
	return out
}

// ResolveMapColumns returns the latitude and longitude columns of tp's map
// view. When none are stored it picks the first latitude and longitude
// columns, falling back to the first location column, and stores the
// choice. Both are empty when the table has no location columns.
func ResolveMapColumns(ctx context.Context, tp *props.TableProperties) (string, string, error) {
	settings, err := tp.MapSettings(ctx)
	if err != nil {
		return "", "", err
	}
	if settings.LatitudeColumn != "" && settings.LongitudeColumn != "" {
		return settings.LatitudeColumn, settings.LongitudeColumn, nil
	}

	cols, err := tp.Columns(ctx)
	if err != nil {
		return "", "", err
	}
	locations := Classify(cols).Location
	if len(locations) == 0 {
		return settings.LatitudeColumn, settings.LongitudeColumn, nil
	}

	geopoints := GeopointColumns(cols)
	lat, long := settings.LatitudeColumn, settings.LongitudeColumn
	for _, c := range locations {
		if lat == "" && IsLatitudeColumn(geopoints, c) {
			lat = c.ElementKey
		}
		if long == "" && IsLongitudeColumn(geopoints, c) {
			long = c.ElementKey
		}
	}
	if lat == "" {
		lat = locations[0].ElementKey
	}
	if long == "" {
		long = locations[0].ElementKey
	}

	if err := tp.SetMapColumns(ctx, lat, long); err != nil {
		return "", "", err
	}
	return lat, long, nil
}

func sortedByKey(cols []column.Definition) []column.Definition {
	out := append([]column.Definition(nil), cols...)
	sort.Slice(out, func(i, j int) bool { return out[i].ElementKey < out[j].ElementKey })
	return out
}
