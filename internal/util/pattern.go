package util

import "strings"

// GlobToLike translates a key glob ('*' matches any run, '?' matches one
// character) into a SQL LIKE pattern. Literal '%', '_' and '\' are escaped
// with a backslash; queries using the result must carry ESCAPE '\'.
func GlobToLike(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
