package settings

import "regexp"

var hexColor = regexp.MustCompile(`^#([0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// ValidColor reports whether s is empty or a 6 or 8 digit hex color with a
// leading '#'.
func ValidColor(s string) bool {
	return s == "" || hexColor.MatchString(s)
}
