package features

import (
	"simfluence/internal/model"
)

// Vector is a feature row laid out in a bundle's column order.
type Vector struct {
	Columns []string
	Values  []float64
	// Missing lists columns the bundle expects that the transformer did not
	// produce; they were filled with 0.
	Missing []string
}

// Float32 returns the values narrowed for compact storage.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v.Values))
	for i, x := range v.Values {
		out[i] = float32(x)
	}
	return out
}

// Build produces every column the schema knows about for rec.
func Build(rec model.PostRecord, aux AuxStats) map[string]float64 {
	m := map[string]float64{
		ColLength:            float64(rec.Length),
		ColContainsImage:     float64(rec.ContainsImage),
		ColShouldImprove:     float64(rec.ShouldImprove),
		ColUserFollowers:     float64(rec.UserFollowers),
		ColUserFollowing:     float64(rec.UserFollowing),
		ColUserKarma:         float64(rec.UserKarma),
		ColAccountAgeDays:    float64(rec.AccountAgeDays),
		ColAvgEngagementRate: float64(rec.AvgEngagementRate),
		ColAvgLikes:          float64(rec.AvgLikes),
		ColAvgComments:       float64(rec.AvgComments),

		ColAvgCommentLength:       aux.AvgCommentLength,
		ColAvgWordCount:           aux.AvgWordCount,
		ColSarcasmEngagementRatio: aux.EngagementRatio,
	}
	m[ColTextComplexity], m[ColEngagementPotential] = Derive(float64(rec.Length), float64(rec.AvgEngagementRate), aux)

	raw := map[string]string{
		TimeOfDay.Name: string(rec.PostTimeOfDay),
		DayOfWeek.Name: string(rec.DayOfWeek),
		Sentiment.Name: string(rec.TopCommentSentiment),
	}
	for _, f := range Families {
		OneHot(m, f, raw[f.Name])
	}
	return m
}

// OneHot zeroes every flag of f in m, then sets the one matching raw.
func OneHot(m map[string]float64, f Family, raw string) {
	for _, v := range f.Values {
		m[f.Column(v)] = 0
	}
	if v, ok := f.Canonical(raw); ok {
		m[f.Column(v)] = 1
	}
}

// Transform builds the vector for rec in the given column order. Nil aux
// falls back to DefaultAux.
func Transform(rec model.PostRecord, columns []string, aux *AuxStats) Vector {
	a := DefaultAux
	if aux != nil {
		a = *aux
	}
	full := Build(rec, a)
	v := Vector{Columns: columns, Values: make([]float64, len(columns))}
	for i, c := range columns {
		x, ok := full[c]
		if !ok {
			v.Missing = append(v.Missing, c)
			continue
		}
		v.Values[i] = x
	}
	return v
}
