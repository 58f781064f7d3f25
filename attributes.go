package resflow

// Attributes is a free-form JSON bag attached to an entity.
type Attributes map[string]any

func (a Attributes) Attribute(key string) (any, bool) {
	value, ok := a[key]

	return value, ok
}

func (a Attributes) AttributeString(key string) string {
	value, _ := a[key].(string)

	return value
}

func (a *Attributes) SetAttribute(key string, value any) {
	if *a == nil {
		*a = make(Attributes)
	}
	(*a)[key] = value
}

func (a *Attributes) DeleteAttribute(key string) {
	if *a == nil {
		return
	}
	delete(*a, key)
}
