package dataset

import (
	"io"
	"math"
	"os"
	"strings"
	"time"

	"simfluence/internal/features"
	"simfluence/internal/schedule"
	"simfluence/internal/util"
)

// Comment is one cleaned row of the auxiliary corpus.
type Comment struct {
	Length          float64
	WordCount       float64
	HasQuestion     int
	HasExclamation  int
	HasUppercase    int
	HasNumbers      int
	EngagementScore float64
	UpvoteRatio     float64
	Subreddit       string
	Day             string
	Hour            int
	TimeOfDay       string
	SubredditCode   int
	DayCode         int
	TimeCode        int
}

// Aux is the cleaned auxiliary corpus and the averages it contributes.
type Aux struct {
	Comments []Comment
	Stats    features.AuxStats
	// DatesDefaulted is set when no timestamp parsed and every row took the
	// Monday/afternoon defaults.
	DatesDefaulted bool
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LoadAux reads and cleans the auxiliary CSV at path.
func LoadAux(path string) (*Aux, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataError{Stage: "aux", Err: err}
	}
	defer f.Close()
	return ParseAux(f)
}

// ParseAux cleans an auxiliary CSV stream: rows without comment text are
// dropped, scalar gaps take neutral defaults and each row gets text,
// engagement and calendar statistics.
func ParseAux(in io.Reader) (*Aux, error) {
	t, err := readTable(in)
	if err != nil {
		return nil, dataErr("aux", "read csv: %w", err)
	}
	if !t.has("comment") {
		return nil, dataErr("aux", "missing column %q", "comment")
	}

	var rows []int
	for i := range t.rows {
		if !isMissing(t.cell(i, "comment")) {
			rows = append(rows, i)
		}
	}

	// One unparseable timestamp drops its row; a column with none parseable
	// falls back to constant defaults.
	dates := make(map[int]time.Time, len(rows))
	for _, i := range rows {
		if d, ok := parseDate(t.cell(i, "date")); ok {
			dates[i] = d
		}
	}
	defaulted := len(dates) == 0
	if !defaulted {
		kept := rows[:0]
		for _, i := range rows {
			if _, ok := dates[i]; ok {
				kept = append(kept, i)
			}
		}
		rows = kept
	}
	if len(rows) == 0 {
		return nil, dataErr("aux", "no rows after cleaning")
	}

	out := &Aux{Comments: make([]Comment, 0, len(rows)), DatesDefaulted: defaulted}
	for _, i := range rows {
		text := t.cell(i, "comment")
		c := Comment{
			Length:    float64(util.CharCount(text)),
			WordCount: float64(util.WordCount(text)),
			Subreddit: strings.TrimSpace(t.cell(i, "subreddit")),
		}
		if isMissing(c.Subreddit) {
			c.Subreddit = "unknown"
		}
		if strings.Contains(text, "?") {
			c.HasQuestion = 1
		}
		if strings.Contains(text, "!") {
			c.HasExclamation = 1
		}
		if util.IsUpper(text) {
			c.HasUppercase = 1
		}
		if util.HasDigit(text) {
			c.HasNumbers = 1
		}
		score, _ := parseFloat(t.cell(i, "score"))
		ups, _ := parseFloat(t.cell(i, "ups"))
		downs, _ := parseFloat(t.cell(i, "downs"))
		c.EngagementScore = math.Abs(score)
		c.UpvoteRatio = UpvoteRatio(ups, downs)
		if defaulted {
			c.Day, c.TimeOfDay = schedule.DefaultDay, schedule.DefaultTimeOfDay
		} else {
			d := dates[i]
			c.Day, c.Hour = schedule.DayName(d), d.Hour()
			c.TimeOfDay = schedule.CoarseTimeOfDay(c.Hour)
		}
		out.Comments = append(out.Comments, c)
	}

	subs := make([]string, len(out.Comments))
	days := make([]string, len(out.Comments))
	tods := make([]string, len(out.Comments))
	lengths := make([]float64, len(out.Comments))
	words := make([]float64, len(out.Comments))
	ratios := make([]float64, len(out.Comments))
	for i, c := range out.Comments {
		subs[i], days[i], tods[i] = c.Subreddit, c.Day, c.TimeOfDay
		lengths[i], words[i], ratios[i] = c.Length, c.WordCount, c.UpvoteRatio
	}
	subCodes, dayCodes, todCodes := labelEncode(subs), labelEncode(days), labelEncode(tods)
	for i := range out.Comments {
		out.Comments[i].SubredditCode = subCodes[i]
		out.Comments[i].DayCode = dayCodes[i]
		out.Comments[i].TimeCode = todCodes[i]
	}
	out.Stats = features.AuxStats{
		AvgCommentLength: mean(lengths),
		AvgWordCount:     mean(words),
		EngagementRatio:  mean(ratios),
	}
	return out, nil
}

// UpvoteRatio is ups / (ups + |downs|) with a zero divisor replaced by 1.
func UpvoteRatio(ups, downs float64) float64 {
	d := ups + math.Abs(downs)
	if d == 0 {
		d = 1
	}
	return ups / d
}
