package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Dump writes every record in r as one line: the key, a tab, then the
// values separated by spaces. Payloads that are not valid UTF-8 are quoted.
func Dump(w io.Writer, r io.Reader) (int, error) {
	bw := bufio.NewWriter(w)
	count := 0
	err := ReadAll(r, func(rec Record) error {
		count++
		bw.WriteString(printable(rec.Key))
		bw.WriteByte('\t')
		for i, v := range rec.Values {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(printable(v))
		}
		return bw.WriteByte('\n')
	})
	if err != nil {
		return count, fmt.Errorf("record %d: %w", count+1, err)
	}
	return count, bw.Flush()
}

func printable(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strconv.Quote(string(b))
}
