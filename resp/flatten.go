package resp

import (
	"strconv"
	"strings"
)

// Flatten returns the elements of an array reply as a flat list of strings,
// the shape older callers of this client expect.
//
// Scalars render as their text (integers in base 10, nil bulks as "").
// A nested array renders as a single string: its own elements joined with
// "<N>", where N is the nesting level of the array holding it (0 for the
// top array). Deeper arrays are flattened first with N+1.
//
//	*2 [ "a", *2 [ "b", "c" ] ]  ->  ["a", "b<0>c"]
//
// Flatten returns nil for a nil array or a reply that is not an array.
func Flatten(r Reply) []string {
	if r.Type != TypeArray || r.Array == nil {
		return nil
	}
	return flattenLevel(r.Array, 0)
}

func flattenLevel(elems []Reply, level int) []string {
	out := make([]string, 0, len(elems))
	for _, elem := range elems {
		if elem.Type != TypeArray {
			out = append(out, elem.String())
			continue
		}
		inner := flattenLevel(elem.Array, level+1)
		out = append(out, strings.Join(inner, "<"+strconv.Itoa(level)+">"))
	}
	return out
}
