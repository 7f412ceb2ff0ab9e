package match

// FindBy returns the first item whose field equals value. An empty value
// never matches.
func FindBy[T any](items []T, field func(T) string, value string) (T, bool) {
	var zero T
	if value == "" {
		return zero, false
	}
	for _, it := range items {
		if field(it) == value {
			return it, true
		}
	}
	return zero, false
}

// Key is one candidate identifier of a record: the field accessor and the
// value the caller is looking for.
type Key[T any] struct {
	Name  string
	Field func(T) string
	Value string
}

// Resolve tries the keys in order and uses the first one that carries a
// value; later keys are not consulted even when the first lookup misses.
// The returned key name is empty when no key had a value.
func Resolve[T any](items []T, keys ...Key[T]) (T, string, bool) {
	var zero T
	for _, k := range keys {
		if k.Value == "" {
			continue
		}
		found, ok := FindBy(items, k.Field, k.Value)
		return found, k.Name, ok
	}
	return zero, "", false
}
