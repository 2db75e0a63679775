package column

// Definition describes one element of a table. Composite elements such as
// geopoints are not units of retention; their sub-elements point back to
// them through ParentKey.
type Definition struct {
	ElementKey      string
	ElementName     string
	Type            Type
	ParentKey       string
	UnitOfRetention bool
	Visible         bool
	DisplayName     string
}

// HasParent reports whether the element belongs to a composite element
func (d Definition) HasParent() bool {
	return d.ParentKey != ""
}

// Sub-element names of a geopoint
const (
	LatitudeElement  = "latitude"
	LongitudeElement = "longitude"
	AltitudeElement  = "altitude"
	AccuracyElement  = "accuracy"
)

// Geopoint expands a geopoint element into the composite parent followed by
// its latitude, longitude, altitude and accuracy sub-elements.
func Geopoint(elementKey, elementName string) []Definition {
	defs := []Definition{{
		ElementKey:  elementKey,
		ElementName: elementName,
		Type:        TypeGeopoint,
	}}
	for _, sub := range []string{LatitudeElement, LongitudeElement, AltitudeElement, AccuracyElement} {
		defs = append(defs, Definition{
			ElementKey:      elementKey + "_" + sub,
			ElementName:     sub,
			Type:            TypeNumber,
			ParentKey:       elementKey,
			UnitOfRetention: true,
			Visible:         true,
		})
	}
	return defs
}
