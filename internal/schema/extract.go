package schema

// Property is an attribute as it applies to one class.
type Property struct {
	*Attribute
	Mandatory   bool
	Constructed bool
}

// ExtractProperties returns one property per mandatory and optional
// attribute of class. Constructed is set from membership in constructed.
func ExtractProperties(class *ResolvedClass, constructed NameSet) []Property {
	if class == nil {
		return nil
	}

	properties := make([]Property, 0, len(class.Mandatory)+len(class.Optional))
	for _, attr := range class.Mandatory {
		properties = append(properties, Property{
			Attribute:   attr,
			Mandatory:   true,
			Constructed: constructed.Contains(attr.Name),
		})
	}
	for _, attr := range class.Optional {
		properties = append(properties, Property{
			Attribute:   attr,
			Constructed: constructed.Contains(attr.Name),
		})
	}
	return properties
}
