package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEvents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain", "ls\r", []string{"l", "s", "\r"}},
		{"arrow key", "a\x1b[Ab", []string{"a", "\x1b[A", "b"}},
		{"csi with parameters", "\x1b[1;5C", []string{"\x1b[1;5C"}},
		{"ss3", "\x1bOHx", []string{"\x1bOH", "x"}},
		{"alt key", "\x1bf", []string{"\x1bf"}},
		{"lone escape", "\x1b", []string{"\x1b"}},
		{"truncated csi", "\x1b[12", []string{"\x1b[12"}},
		{"multibyte", "é\x7f", []string{"é", "\x7f"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, ev := range splitEvents([]byte(tt.input)) {
				got = append(got, string(ev))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
