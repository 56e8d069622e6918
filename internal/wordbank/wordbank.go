package wordbank

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// WordBank holds an ordered list of entries read from a line-oriented file:
// candidate words or pattern templates, one per line
type WordBank struct {
	entries []string
	index   map[string]int
}

// New creates a new WordBank from a file
func New(filename string) (*WordBank, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening word bank file: %w", err)
	}
	defer file.Close()

	wb, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("reading word bank file %s: %w", filename, err)
	}
	return wb, nil
}

// Read builds a WordBank from r, one entry per line. Only the line terminator
// is stripped, so spaces at either end stay part of the entry. Whitespace-only
// lines and lines starting with # are skipped. Repeated entries keep their
// first position.
func Read(r io.Reader) (*WordBank, error) {
	wb := &WordBank{
		entries: make([]string, 0),
		index:   make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		entry := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(entry) == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		wb.add(entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return wb, nil
}

func (wb *WordBank) add(entry string) {
	if _, seen := wb.index[entry]; seen {
		return
	}
	wb.index[entry] = len(wb.entries)
	wb.entries = append(wb.entries, entry)
}

// Words returns the entries in file order
func (wb *WordBank) Words() []string {
	out := make([]string, len(wb.entries))
	copy(out, wb.entries)
	return out
}

// Size returns the number of entries in the word bank
func (wb *WordBank) Size() int {
	return len(wb.entries)
}
