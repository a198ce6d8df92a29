package email

import "regexp"

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// Valid reports whether s is structurally an email address. This is a shape
// check only; deliverability is the directory's problem.
func Valid(s string) bool {
	return addressPattern.MatchString(s)
}
