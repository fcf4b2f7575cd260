package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Feed column names, compared after lowercasing and trimming the header.
const (
	colDate          = "tarih"
	colCity          = "sehir"
	colMonthlyScore  = "aylik_ortalama_ecopulse"
	colForecastDate  = "tahmin_tarihi"
	colForecastScore = "tahmini_ecopulse_skoru"
	colNO2           = "no2_skoru"
	colTempDay       = "sicaklik_gunduz_c"
	colTempNight     = "sicaklik_gece_c"
	colPrecip        = "yagis_mm_gun"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01",
	"2006/01/02",
	"02.01.2006",
}

// table reads a header-led CSV feed row by row.
type table struct {
	r       *csv.Reader
	columns map[string]int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func newTable(src io.Reader, required ...string) (*table, error) {
	br := bufio.NewReader(src)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("feed is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &table{r: r, columns: normalizeHeader(header)}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return t, nil
}

func normalizeHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// next returns io.EOF after the last record.
func (t *table) next() (row, error) {
	fields, err := t.r.Read()
	if err != nil {
		return row{}, err
	}
	line, _ := t.r.FieldPos(0)
	return row{t: t, fields: fields, line: line}, nil
}

type row struct {
	t      *table
	fields []string
	line   int
}

// value returns the trimmed cell for col and whether the row has that cell.
func (r row) value(col string) (string, bool) {
	i, ok := r.t.columns[col]
	if !ok || i >= len(r.fields) {
		return "", false
	}
	return strings.TrimSpace(r.fields[i]), true
}

func (r row) date(col string) (time.Time, error) {
	s, _ := r.value(col)
	d, err := parseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", col, err)
	}
	return d, nil
}

func (r row) float(col string) (float64, error) {
	s, _ := r.value(col)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("%s: invalid number %q", col, s)
	}
	return f, nil
}

// optionalFloat is nil when the column or cell is missing or empty.
func (r row) optionalFloat(col string) (*float64, error) {
	s, ok := r.value(col)
	if !ok || isBlank(s) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid number %q", col, s)
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

func isBlank(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
