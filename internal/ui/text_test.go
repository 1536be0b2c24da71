package ui

import "testing"

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{name: "short text unchanged", text: "Login broken", maxLen: 20, want: "Login broken"},
		{name: "exact length unchanged", text: "abcde", maxLen: 5, want: "abcde"},
		{name: "truncated with ellipsis", text: "Login broken on Android", maxLen: 10, want: "Login b..."},
		{name: "tiny limit", text: "Login broken", maxLen: 2, want: "..."},
		{name: "multibyte safe", text: "Größenänderung", maxLen: 7, want: "Größ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateSimple(tt.text, tt.maxLen); got != tt.want {
				t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
		})
	}
}
