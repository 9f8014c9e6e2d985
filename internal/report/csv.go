package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes a header row and one row per record. Every field is
// quoted and embedded quotes are doubled.
func WriteCSV(w io.Writer, rep Report) error {
	bw := bufio.NewWriter(w)

	if header := rep.header(); header != nil {
		writeCSVRow(bw, header)
	}
	for _, r := range rep.Records {
		writeCSVRow(bw, r.Cells())
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(field, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}
