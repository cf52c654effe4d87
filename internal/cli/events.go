package cli

import (
	"unicode/utf8"

	"sudohist/internal/linebuf"
)

// splitEvents cuts recorded input into the events a terminal would deliver:
// an escape sequence or a multi-byte character is one event, every other
// byte is its own.
func splitEvents(data []byte) [][]byte {
	var events [][]byte
	for i := 0; i < len(data); {
		n := 1
		switch {
		case data[i] == linebuf.ESC:
			n = escapeLen(data[i:])
		case data[i] >= utf8.RuneSelf:
			_, n = utf8.DecodeRune(data[i:])
		}
		events = append(events, data[i:i+n])
		i += n
	}
	return events
}

// escapeLen returns the length of the escape sequence at the start of b.
func escapeLen(b []byte) int {
	if len(b) < 2 {
		return len(b)
	}
	switch b[1] {
	case '[':
		// CSI: parameters then a final byte in 0x40..0x7e.
		for j := 2; j < len(b); j++ {
			if b[j] >= 0x40 && b[j] <= 0x7e {
				return j + 1
			}
		}
		return len(b)
	case 'O':
		return min(3, len(b))
	default:
		// Alt+key.
		return 2
	}
}
