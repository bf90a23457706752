// Package features holds the feature schema shared by training and serving.
// Both paths build their columns through this package so a trained bundle
// and a live request always agree on names, encodings and derived values.
package features

import (
	"sort"

	"simfluence/internal/util"
)

// Version is stamped into every bundle. Bump it when column semantics change.
const Version = 1

// Base numeric columns copied straight from a record.
const (
	ColLength            = "length"
	ColContainsImage     = "containsImage"
	ColShouldImprove     = "shouldImprove"
	ColUserFollowers     = "userFollowers"
	ColUserFollowing     = "userFollowing"
	ColUserKarma         = "userKarma"
	ColAccountAgeDays    = "accountAgeDays"
	ColAvgEngagementRate = "avgEngagementRate"
	ColAvgLikes          = "avgLikes"
	ColAvgComments       = "avgComments"
)

// Auxiliary and derived columns.
const (
	ColAvgCommentLength       = "avg_comment_length"
	ColAvgWordCount           = "avg_word_count"
	ColSarcasmEngagementRatio = "sarcasm_engagement_ratio"
	ColTextComplexity         = "text_complexity"
	ColEngagementPotential    = "engagement_potential"
)

// Label and free-text columns never become features.
const (
	LabelLikes    = "receivedLikes"
	LabelComments = "receivedComments"
	LabelShares   = "receivedShares"
)

var BaseColumns = []string{
	ColLength, ColContainsImage, ColShouldImprove, ColUserFollowers, ColUserFollowing,
	ColUserKarma, ColAccountAgeDays, ColAvgEngagementRate, ColAvgLikes, ColAvgComments,
}

var AuxColumns = []string{ColAvgCommentLength, ColAvgWordCount, ColSarcasmEngagementRatio}

var DerivedColumns = []string{ColTextComplexity, ColEngagementPotential}

// Family is a categorical input one-hot encoded into <Name>_<Value> flags.
type Family struct {
	Name   string
	Values []string // canonical, lower snake case
}

var (
	TimeOfDay = Family{Name: "postTimeOfDay", Values: []string{"morning", "afternoon", "evening", "night", "midnight", "early_morning"}}
	DayOfWeek = Family{Name: "dayOfWeek", Values: []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}}
	Sentiment = Family{Name: "topCommentSentiment", Values: []string{"positive", "negative", "neutral", "humorous"}}
)

// Families lists the categorical inputs in column order.
var Families = []Family{TimeOfDay, DayOfWeek, Sentiment}

// Canonical resolves raw to a known value, ignoring case and treating spaces
// and hyphens as underscores.
func (f Family) Canonical(raw string) (string, bool) {
	k := util.NormalizeKey(raw)
	for _, v := range f.Values {
		if v == k {
			return v, true
		}
	}
	return "", false
}

// Column names the flag column for a canonical value.
func (f Family) Column(value string) string {
	return f.Name + "_" + util.TitleSnake(value)
}

// AuxStats are the auxiliary-corpus averages broadcast onto every row.
type AuxStats struct {
	AvgCommentLength float64 `json:"avg_comment_length"`
	AvgWordCount     float64 `json:"avg_word_count"`
	EngagementRatio  float64 `json:"sarcasm_engagement_ratio"`
}

// DefaultAux approximates the corpus averages for bundles that carry none.
var DefaultAux = AuxStats{AvgCommentLength: 150, AvgWordCount: 25, EngagementRatio: 0.75}

// Derive computes text_complexity and engagement_potential.
func Derive(length, avgEngagementRate float64, aux AuxStats) (textComplexity, engagementPotential float64) {
	return length * aux.AvgWordCount, avgEngagementRate * aux.EngagementRatio
}

// Columns returns the training column order given the categorical levels seen
// in the data. The lexically first level of each family is dropped as the
// reference category. Aux and derived columns are appended when withAux is set.
func Columns(levels map[string][]string, withAux bool) []string {
	cols := append([]string(nil), BaseColumns...)
	for _, f := range Families {
		seen := append([]string(nil), levels[f.Name]...)
		sort.Strings(seen)
		for i, v := range seen {
			if i == 0 {
				continue
			}
			cols = append(cols, f.Column(v))
		}
	}
	if withAux {
		cols = append(cols, AuxColumns...)
		cols = append(cols, DerivedColumns...)
	}
	return cols
}
