package utils

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is definitely too long", 7, "this is..."},
		{"anything", 0, "anything"},
		{"", 5, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.s, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d): got %q, want %q", tc.s, tc.maxLen, got, tc.want)
		}
	}
}

func TestTruncate_MultiByte(t *testing.T) {
	got := Truncate("日本語のテキストです", 3)
	if got != "日本語..." {
		t.Errorf("got %q", got)
	}
}
