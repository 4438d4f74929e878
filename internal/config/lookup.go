package config

// Table is a per-category lookup with a conventional "default" entry.
// Category settings (python versions, parallelism caps) all use the
// same shape: look the category up, fall back to "default".
type Table[T any] map[string]T

// ResolveEntry returns the table entry for key, or the "default" entry
// when the key is absent. The second return is false only when the
// table has neither.
func ResolveEntry[T any](key string, table Table[T]) (T, bool) {
	if v, ok := table[key]; ok {
		return v, true
	}
	v, ok := table["default"]
	return v, ok
}
