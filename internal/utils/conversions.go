package utils

import "fmt"

// ToStringSlice renders a slice of arbitrary values as strings, keeping the
// input order.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
			continue
		}
		stringSlice = append(stringSlice, fmt.Sprint(v))
	}
	return stringSlice
}
