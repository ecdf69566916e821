// Package importer parses marketplace CSV exports and applies them to stock
// and sales.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// ColumnType is the detected kind of a CSV column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
)

var (
	// ErrEmptyFile indicates input without any content.
	ErrEmptyFile = fmt.Errorf("csv: file has no content: %w", httpx.ErrValidation)
	// ErrNoRows indicates a header without usable data rows.
	ErrNoRows = fmt.Errorf("csv: no valid data rows: %w", httpx.ErrValidation)
	// ErrMissingColumn indicates a required header is absent.
	ErrMissingColumn = fmt.Errorf("csv: missing required column: %w", httpx.ErrValidation)
)

var candidateDelimiters = []rune{',', ';', '\t'}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}$`),
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{4}$`),
	regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{2}$`),
}

// Row maps header names to trimmed cell values.
type Row map[string]string

// Result is a parsed CSV file.
type Result struct {
	Delimiter   string                `json:"delimiter"`
	Headers     []string              `json:"headers"`
	Rows        []Row                 `json:"rows"`
	ColumnTypes map[string]ColumnType `json:"column_types"`
	// Skipped lists source line numbers dropped for a column count mismatch.
	Skipped []int `json:"skipped,omitempty"`
	// Lines holds the source line number of each entry in Rows.
	Lines []int `json:"-"`
}

// Parse reads a CSV export. A UTF-8 BOM is removed, line endings are
// normalised and the delimiter is the candidate appearing most often in the
// header line.
func Parse(r io.Reader) (Result, error) {
	raw, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return Result{}, fmt.Errorf("csv: read: %w", err)
	}
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	raw = bytes.ReplaceAll(raw, []byte("\r"), []byte("\n"))
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Result{}, ErrEmptyFile
	}

	delim := detectDelimiter(text)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := make([][]string, 0, 64)
	lines := make([]int, 0, 64)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("csv: parse: %w: %w", httpx.ErrValidation, err)
		}
		if blankRecord(rec) {
			continue
		}
		line, _ := reader.FieldPos(0)
		for i := range rec {
			rec[i] = cleanValue(rec[i])
		}
		records = append(records, rec)
		lines = append(lines, line)
	}
	if len(records) == 0 {
		return Result{}, ErrEmptyFile
	}

	res := Result{Delimiter: string(delim), Headers: records[0]}
	for i, rec := range records[1:] {
		if len(rec) != len(res.Headers) {
			res.Skipped = append(res.Skipped, lines[i+1])
			continue
		}
		row := make(Row, len(rec))
		for j, h := range res.Headers {
			row[h] = rec[j]
		}
		res.Rows = append(res.Rows, row)
		res.Lines = append(res.Lines, lines[i+1])
	}
	if len(res.Rows) == 0 {
		return Result{}, ErrNoRows
	}
	res.ColumnTypes = make(map[string]ColumnType, len(res.Headers))
	for _, h := range res.Headers {
		values := make([]string, len(res.Rows))
		for i, row := range res.Rows {
			values[i] = row[h]
		}
		res.ColumnTypes[h] = DetectColumnType(values)
	}
	return res, nil
}

// Require reports the first of columns missing from the header.
func (r Result) Require(columns ...string) error {
	present := make(map[string]struct{}, len(r.Headers))
	for _, h := range r.Headers {
		present[h] = struct{}{}
	}
	for _, c := range columns {
		if _, ok := present[c]; !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}
	return nil
}

func detectDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	best, most := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(first, string(d)); n > most {
			best, most = d, n
		}
	}
	return best
}

// DetectColumnType classifies a column by its non-blank values. Dates win
// when they outnumber both numbers and text; otherwise a column is numeric
// only if it holds no text.
func DetectColumnType(values []string) ColumnType {
	var dates, numbers, texts int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch {
		case isDate(v):
			dates++
		case isNumber(v):
			numbers++
		default:
			texts++
		}
	}
	switch {
	case dates > numbers && dates > texts:
		return ColumnDate
	case numbers > 0 && texts == 0:
		return ColumnNumber
	default:
		return ColumnText
	}
}

func isDate(v string) bool {
	for _, p := range datePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

func isNumber(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// cleanValue trims a cell and drops one pair of surrounding quotes.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			v = v[1 : len(v)-1]
		}
	}
	return strings.ReplaceAll(v, `""`, `"`)
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
