// Package postproc holds table utilities for the tab-separated outputs and
// similar plain-text tables: concatenating tables end to end, and
// collapsing a table to one record per grid cell over a time window.
package postproc

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const maxLine = 16 << 20

// AppendOptions controls Append.
type AppendOptions struct {
	// Verbatim copies every line, keeping later headers and blank lines.
	Verbatim bool
	// Continuation means w already holds a table, so every input's header
	// is dropped, not just those after the first.
	Continuation bool
}

// Append concatenates inputs onto w and returns the number of lines written.
// Unless Verbatim is set, blank lines are dropped and only the first input
// keeps its header row. A header is a first non-blank line whose first
// significant character (ignoring spaces, tabs, '.' and '-') is not a digit.
// Carriage returns are removed.
func Append(w io.Writer, inputs []io.Reader, opts AppendOptions) (int, error) {
	bw := bufio.NewWriter(w)
	lines := 0

	for i, in := range inputs {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)

		first := true
		for sc.Scan() {
			line := strings.ReplaceAll(sc.Text(), "\r", "")
			if !opts.Verbatim {
				if isBlank(line) {
					continue
				}
				if first {
					first = false
					if (i > 0 || opts.Continuation) && isHeader(line) {
						continue
					}
				}
			}
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return lines, err
			}
			lines++
		}
		if err := sc.Err(); err != nil {
			return lines, fmt.Errorf("input %d: %w", i+1, err)
		}
	}
	return lines, bw.Flush()
}

func isBlank(line string) bool {
	return strings.Trim(line, " \t") == ""
}

func isHeader(line string) bool {
	i := strings.IndexFunc(line, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '.' && r != '-'
	})
	return i < 0 || line[i] < '0' || line[i] > '9'
}
