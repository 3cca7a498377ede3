package models

// JSONMap is a free-form document stored in a jsonb column. Keys are
// case-sensitive and carry no declared schema; values are whatever the
// JSON decoder produced (string, float64, bool or nil).
type JSONMap map[string]interface{}

// Field returns the value stored under key. The second return value is
// false when the key is absent or the stored value is null, which every
// query path treats as "missing" rather than an error.
func (m JSONMap) Field(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Merge copies the entries of other into m and returns the result. A nil
// value removes the key. The receiver may be nil.
func (m JSONMap) Merge(other JSONMap) JSONMap {
	out := JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
