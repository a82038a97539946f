package util

import "testing"

func TestGlobToLike(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		want    string
	}{
		{"star becomes percent", "user_*", `user\_%`},
		{"question mark becomes underscore", "item?", "item_"},
		{"plain text untouched", "plain", "plain"},
		{"literal percent escaped", "100%", `100\%`},
		{"literal underscore escaped", "a_b", `a\_b`},
		{"backslash escaped", `a\b`, `a\\b`},
		{"match everything", "*", "%"},
		{"mixed", "log-?-*.json", `log-_-%.json`},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GlobToLike(tc.pattern); got != tc.want {
				t.Errorf("GlobToLike(%q) = %q, want %q", tc.pattern, got, tc.want)
			}
		})
	}
}
