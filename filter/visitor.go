package filter

// Visitor drives a depth-first traversal of a decoded JSON filter tree
// (spec §4.B). Implementations fire on container boundaries and scalar
// leaves; a non-nil error from any method aborts the walk immediately and
// is propagated to the caller of Walk.
type Visitor interface {
	BeginObject() error
	EndObject() error
	BeginArray() error
	ArrayElement(index int) error
	EndArray() error

	// BeginKey/EndKey bracket a single object key's value. Implementations
	// maintain their own stack of contextual operator keys here: keys
	// beginning with "$" are pushed on BeginKey and popped on EndKey; all
	// other keys are field identifiers and never pushed.
	BeginKey(name string) error
	EndKey(name string) error

	Scalar(value interface{}) error
}

// Walk performs the depth-first traversal described by Visitor over a tree
// decoded by encoding/json (so containers are map[string]interface{} and
// []interface{}, and scalars are string, float64, bool, or nil).
//
// Object keys are visited in sorted order: encoding/json does not preserve
// source order in a map[string]interface{}, and the compiled predicate
// must be deterministic regardless of which order Go chooses to range a
// map, so traversal order is made explicit here rather than left to chance.
func Walk(v interface{}, vis Visitor) error {
	switch t := v.(type) {
	case map[string]interface{}:
		if err := vis.BeginObject(); err != nil {
			return err
		}
		for _, k := range sortedKeys(t) {
			if err := vis.BeginKey(k); err != nil {
				return err
			}
			if err := Walk(t[k], vis); err != nil {
				return err
			}
			if err := vis.EndKey(k); err != nil {
				return err
			}
		}
		return vis.EndObject()

	case []interface{}:
		if err := vis.BeginArray(); err != nil {
			return err
		}
		for i, elem := range t {
			if err := vis.ArrayElement(i); err != nil {
				return err
			}
			if err := Walk(elem, vis); err != nil {
				return err
			}
		}
		return vis.EndArray()

	default:
		return vis.Scalar(t)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort: filter trees are small (a handful of keys per
	// object), so a simple in-place sort is enough.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
