package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
)

// table is a header-indexed CSV body.
type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(in io.Reader) (*table, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	t := &table{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	t.rows, err = r.ReadAll()
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// cell returns the raw value, or "" when the column or cell is absent.
func (t *table) cell(row int, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][i]
}

// isMissing follows the usual CSV null spellings.
func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "nan", "null", "none":
		return true
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	if isMissing(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseBool accepts True/False in any case and 1/0.
func parseBool(s string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "1.0":
		return 1, true
	case "false", "0", "0.0":
		return 0, true
	}
	return 0, false
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

// mode returns the most frequent value; ties go to the lexically first.
func mode(vals []string) string {
	counts := map[string]int{}
	for _, v := range vals {
		counts[v]++
	}
	best, n := "", 0
	for v, c := range counts {
		if c > n || (c == n && v < best) {
			best, n = v, c
		}
	}
	return best
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// labelEncode maps each value to its index in the sorted vocabulary.
func labelEncode(vals []string) []int {
	vocab := append([]string(nil), vals...)
	sort.Strings(vocab)
	codes := map[string]int{}
	for _, v := range vocab {
		if _, ok := codes[v]; !ok {
			codes[v] = len(codes)
		}
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = codes[v]
	}
	return out
}
