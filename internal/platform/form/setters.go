package form

import "strings"

// Text returns a setter that stores the trimmed value through field.
func Text[T any](field func(*T) *string) Setter[T] {
	return func(draft *T, value string) error {
		*field(draft) = strings.TrimSpace(value)
		return nil
	}
}

// List returns a setter that splits a comma-separated value, dropping
// empty entries.
func List[T any](field func(*T) *[]string) Setter[T] {
	return func(draft *T, value string) error {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*field(draft) = out
		return nil
	}
}
