// Package dataset loads and cleans the training corpora: the primary
// simulated-engagement table and the auxiliary sarcasm comment corpus.
package dataset

import (
	"fmt"
	"io"
	"os"
	"sort"

	"simfluence/internal/features"
	"simfluence/internal/model"
)

// Sample is one cleaned primary row with its three labels.
type Sample struct {
	Record   model.PostRecord
	Likes    float64
	Comments float64
	Shares   float64
}

// Primary is the cleaned simulated-engagement table.
type Primary struct {
	Samples []Sample
	// Levels holds the canonical categorical values present, per family.
	Levels map[string][]string
}

type numericField struct {
	col string
	set func(*Sample, float64)
}

var numericFields = []numericField{
	{features.ColLength, func(s *Sample, v float64) { s.Record.Length = model.Number(v) }},
	{features.ColUserFollowers, func(s *Sample, v float64) { s.Record.UserFollowers = model.Number(v) }},
	{features.ColUserFollowing, func(s *Sample, v float64) { s.Record.UserFollowing = model.Number(v) }},
	{features.ColUserKarma, func(s *Sample, v float64) { s.Record.UserKarma = model.Number(v) }},
	{features.ColAccountAgeDays, func(s *Sample, v float64) { s.Record.AccountAgeDays = model.Number(v) }},
	{features.ColAvgEngagementRate, func(s *Sample, v float64) { s.Record.AvgEngagementRate = model.Number(v) }},
	{features.ColAvgLikes, func(s *Sample, v float64) { s.Record.AvgLikes = model.Number(v) }},
	{features.ColAvgComments, func(s *Sample, v float64) { s.Record.AvgComments = model.Number(v) }},
	{features.LabelLikes, func(s *Sample, v float64) { s.Likes = v }},
	{features.LabelComments, func(s *Sample, v float64) { s.Comments = v }},
	{features.LabelShares, func(s *Sample, v float64) { s.Shares = v }},
}

var boolFields = []numericField{
	{features.ColContainsImage, func(s *Sample, v float64) { s.Record.ContainsImage = model.Number(v) }},
	{features.ColShouldImprove, func(s *Sample, v float64) { s.Record.ShouldImprove = model.Number(v) }},
}

var categoricalFields = map[string]func(*Sample, string){
	features.TimeOfDay.Name: func(s *Sample, v string) { s.Record.PostTimeOfDay = model.Category(v) },
	features.DayOfWeek.Name: func(s *Sample, v string) { s.Record.DayOfWeek = model.Category(v) },
	features.Sentiment.Name: func(s *Sample, v string) { s.Record.TopCommentSentiment = model.Category(v) },
}

var labelColumns = []string{features.LabelLikes, features.LabelComments, features.LabelShares}

// LoadPrimary reads and cleans the primary CSV at path.
func LoadPrimary(path string) (*Primary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataError{Stage: "primary", Err: err}
	}
	defer f.Close()
	return ParsePrimary(f)
}

// ParsePrimary cleans a primary CSV stream. Booleans become 0/1, invalid
// numbers take the column median and missing or unknown categories take the
// column mode. Label columns are required.
func ParsePrimary(in io.Reader) (*Primary, error) {
	t, err := readTable(in)
	if err != nil {
		return nil, dataErr("primary", "read csv: %w", err)
	}
	for _, c := range labelColumns {
		if !t.has(c) {
			return nil, dataErr("primary", "missing label column %q", c)
		}
	}
	n := len(t.rows)
	if n == 0 {
		return nil, dataErr("primary", "no rows")
	}
	samples := make([]Sample, n)

	for _, f := range numericFields {
		if !t.has(f.col) {
			continue
		}
		vals := make([]float64, n)
		ok := make([]bool, n)
		var valid []float64
		for i := range t.rows {
			vals[i], ok[i] = parseFloat(t.cell(i, f.col))
			if ok[i] {
				valid = append(valid, vals[i])
			}
		}
		fill := median(valid)
		for i := range samples {
			if !ok[i] {
				vals[i] = fill
			}
			f.set(&samples[i], vals[i])
		}
	}

	for _, f := range boolFields {
		for i := range samples {
			v, _ := parseBool(t.cell(i, f.col))
			f.set(&samples[i], v)
		}
	}

	levels := map[string][]string{}
	for _, fam := range features.Families {
		if !t.has(fam.Name) {
			continue
		}
		vals := make([]string, n)
		var known []string
		for i := range t.rows {
			if v, ok := fam.Canonical(t.cell(i, fam.Name)); ok {
				vals[i] = v
				known = append(known, v)
			}
		}
		fill := mode(known)
		seen := map[string]bool{}
		set := categoricalFields[fam.Name]
		for i := range samples {
			if vals[i] == "" {
				vals[i] = fill
			}
			set(&samples[i], vals[i])
			if vals[i] != "" && !seen[vals[i]] {
				seen[vals[i]] = true
				levels[fam.Name] = append(levels[fam.Name], vals[i])
			}
		}
		sort.Strings(levels[fam.Name])
	}

	for i := range samples {
		samples[i].Record.PostText = t.cell(i, "postText")
		samples[i].Record.Hashtags = t.cell(i, "hashtags")
	}
	return &Primary{Samples: samples, Levels: levels}, nil
}

// Matrix is the numeric training design: one row per sample in Columns order.
type Matrix struct {
	Columns  []string
	X        [][]float64
	Likes    []float64
	Comments []float64
	Shares   []float64
	// Aux is nil for primary-only matrices.
	Aux *features.AuxStats
}

// Combine lays out p through the shared feature schema. A non-nil aux
// broadcasts the corpus averages and adds the derived columns.
func Combine(p *Primary, aux *features.AuxStats) (*Matrix, error) {
	if p == nil || len(p.Samples) == 0 {
		return nil, dataErr("combine", "no rows")
	}
	m := &Matrix{Columns: features.Columns(p.Levels, aux != nil), Aux: aux}
	for i, s := range p.Samples {
		v := features.Transform(s.Record, m.Columns, aux)
		if len(v.Missing) > 0 {
			return nil, dataErr("combine", "row %d: columns %v not produced", i, v.Missing)
		}
		m.X = append(m.X, v.Values)
		m.Likes = append(m.Likes, s.Likes)
		m.Comments = append(m.Comments, s.Comments)
		m.Shares = append(m.Shares, s.Shares)
	}
	return m, nil
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%d rows x %d features", len(m.X), len(m.Columns))
}
