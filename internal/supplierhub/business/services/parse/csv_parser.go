package parse

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// maxCsvRows is the safety ceiling for one CSV feed; rows past it are
// dropped and the stream is marked truncated, not failed.
const maxCsvRows = 200000

// CsvParser reads a header row and streams the remaining rows as
// header→value records. When the configured delimiter yields a single
// ambiguous column, the header line is re-inspected and the feed is
// re-parsed with the detected delimiter.
type CsvParser struct{}

func (p *CsvParser) Parse(body []byte, hints Hints) (*Stream, error) {
	body = stripBOM(body)

	delim := firstRune(hints.Delimiter, ';')
	header, reader, err := readHeader(body, delim)
	if err != nil {
		return nil, &ParseError{Format: "csv", Err: err}
	}

	if len(header) == 1 {
		if detected, ok := detectDelimiter(header[0], delim); ok {
			header, reader, err = readHeader(body, detected)
			if err != nil {
				return nil, &ParseError{Format: "csv", Err: err}
			}
		}
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var stream *Stream
	stream = NewFuncStream(func() (Record, error) {
		if stream.Count() >= maxCsvRows {
			stream.markTruncated()
			return nil, nil
		}
		row, err := reader.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, &ParseError{Format: "csv", Err: err}
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = strings.TrimSpace(row[i])
			} else {
				rec[name] = nil
			}
		}
		return rec, nil
	})
	return stream, nil
}

func readHeader(body []byte, delim rune) ([]string, *csv.Reader, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	return header, r, nil
}

// detectDelimiter looks for a more plausible delimiter inside a header
// that parsed as a single column.
func detectDelimiter(header string, current rune) (rune, bool) {
	for _, cand := range []rune{';', ',', '\t'} {
		if cand != current && strings.ContainsRune(header, cand) {
			return cand, true
		}
	}
	return 0, false
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

func firstRune(s string, fallback rune) rune {
	for _, r := range s {
		return r
	}
	return fallback
}
