package history

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseLine splits one history line written with prefix back into an Entry.
// Lines that do not start with "<prefix> " are returned whole as content
// with an empty prefix.
func ParseLine(line, prefix string) Entry {
	line = strings.TrimSuffix(line, "\n")
	if rest, ok := strings.CutPrefix(line, prefix+" "); ok {
		return Entry{Prefix: prefix, Content: rest}
	}
	return Entry{Content: line}
}

// ReadEntries parses every line of r.
func ReadEntries(r io.Reader, prefix string) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		entries = append(entries, ParseLine(sc.Text(), prefix))
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

// ReadFile parses the history file at path.
func ReadFile(path, prefix string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()
	return ReadEntries(f, prefix)
}
