package enums

import "fmt"

func contains[T ~string](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func parse[T ~string](values []T, raw, label string) (T, error) {
	for _, candidate := range values {
		if string(candidate) == raw {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, raw)
}
