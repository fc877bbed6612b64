package domain

import "strings"

// OptionalText normalizes an optional text input: nil, empty and
// whitespace-only values are all absent. Present values are trimmed.
func OptionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// OptionalEmail normalizes like OptionalText and lower-cases the result.
func OptionalEmail(s *string) *string {
	v := OptionalText(s)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

// RequiredText trims s and returns a ValidationError naming field when blank.
func RequiredText(field, s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", Required(field)
	}
	return v, nil
}
