// Package collect provides generic filter-and-transform helpers for slices and maps.
//
// Every helper takes a callback that both selects and converts: returning
// ok=false drops the element. Inputs are never modified.
package collect

// SliceToSlice returns fn's result for every element of in that fn accepts,
// in input order.
func SliceToSlice[T, R any](in []T, fn func(T) (R, bool)) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		if r, ok := fn(v); ok {
			out = append(out, r)
		}
	}
	return out
}

// SliceToMap builds a map from the key/value pairs fn accepts.
// When two elements produce the same key, the later one wins.
func SliceToMap[T any, K comparable, V any](in []T, fn func(T) (K, V, bool)) map[K]V {
	out := make(map[K]V, len(in))
	for _, v := range in {
		if k, val, ok := fn(v); ok {
			out[k] = val
		}
	}
	return out
}

// MapToSlice returns fn's result for every entry of in that fn accepts.
// The order follows map iteration and is not specified.
func MapToSlice[K comparable, V, R any](in map[K]V, fn func(K, V) (R, bool)) []R {
	out := make([]R, 0, len(in))
	for k, v := range in {
		if r, ok := fn(k, v); ok {
			out = append(out, r)
		}
	}
	return out
}

// Contains reports whether eq holds for target and any element of in.
func Contains[T, V any](in []T, target V, eq func(T, V) bool) bool {
	for _, v := range in {
		if eq(v, target) {
			return true
		}
	}
	return false
}

// Filter returns the elements of in for which keep is true.
func Filter[T any](in []T, keep func(T) bool) []T {
	return SliceToSlice(in, func(v T) (T, bool) {
		return v, keep(v)
	})
}
