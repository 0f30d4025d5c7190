package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readBuffer is large enough for most single-cell polygons to be read without
// refilling. encoding/csv itself puts no ceiling on a field's size.
const readBuffer = 1 << 20

// Record is one data row of a source file. Line is the 1-based line number
// the row starts on.
type Record struct {
	Line   int
	Fields []string
}

// eachRecord opens path, skips the header row and calls fn for every data row
// until fn returns an error or the file ends. A UTF-8 or UTF-16 byte order
// mark is honoured and stripped.
func eachRecord(ctx context.Context, path string, comma rune, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(bufio.NewReaderSize(dec, readBuffer))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := r.FieldPos(0)
		if err := fn(Record{Line: line, Fields: fields}); err != nil {
			return err
		}
	}
}
