package storage

import "testing"

var matchTestCases = []struct {
	name     string
	key      string
	pattern  string
	expected bool
}{
	{"empty pattern, empty key", "", "", true},
	{"empty pattern, non-empty key", "test", "", false},
	{"non-empty pattern, empty key", "", "test", false},

	{"exact match", "hello", "hello", true},
	{"exact match is case sensitive", "Hello", "hello", false},

	{"star, non-empty key", "test", "*", true},
	{"star, empty key", "", "*", false},

	{"prefix", "hello world", "hello*", true},
	{"prefix exact", "hello", "hello*", true},
	{"prefix miss", "hi world", "hello*", false},
	{"suffix", "hello world", "*world", true},
	{"suffix miss", "hello universe", "*world", false},
	{"middle star, empty middle", "helloworld", "hello*world", true},
	{"backtracking star", "abcbcd", "a*bcd", true},

	{"question mark", "hello", "h?ll?", true},
	{"question mark length", "hello", "hell??", false},
	{"only stars", "anything", "***", true},

	{"class", "hallo", "h[ae]llo", true},
	{"class miss", "hillo", "h[ae]llo", false},
	{"negated class", "hillo", "h[^e]llo", true},
	{"negated class miss", "hello", "h[^e]llo", false},
	{"range", "key7", "key[0-9]", true},
	{"range miss", "keyx", "key[0-9]", false},
	{"unterminated class", "h[e", "h[e", false},

	{"escaped star", "a*b", `a\*b`, true},
	{"escaped star literal only", "axb", `a\*b`, false},

	{"redis key middle", "user:123:profile", "user:*:profile", true},
	{"redis key complex", "cache:user:123:data", "cache:*:*:data", true},
}

func TestMatchPattern(t *testing.T) {
	for _, tc := range matchTestCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchPattern(tc.key, tc.pattern); got != tc.expected {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tc.key, tc.pattern, got, tc.expected)
			}
		})
	}
}

func TestNextPowerOf2(t *testing.T) {
	tests := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range tests {
		if got := nextPowerOf2(in); got != want {
			t.Errorf("nextPowerOf2(%d) = %d, want %d", in, got, want)
		}
	}
}
