package dataset

import (
	"errors"
	"math"
	"strings"
	"testing"

	"simfluence/internal/features"
)

const primaryCSV = `postText,hashtags,length,containsImage,postTimeOfDay,dayOfWeek,topCommentSentiment,shouldImprove,userFollowers,userFollowing,userKarma,accountAgeDays,avgEngagementRate,avgLikes,avgComments,receivedLikes,receivedComments,receivedShares,suggestions
hello,#a,10,True,morning,Monday,positive,False,100,50,10,30,0.1,5,1,12,3,1,x
world,#b,abc,False,Evening,Tuesday,negative,True,200,60,20,40,0.2,6,2,20,4,2,y
again,#c,30,true,,Monday,,false,300,70,30,50,0.3,7,3,30,5,3,z
`

func TestParsePrimaryCleans(t *testing.T) {
	p, err := ParsePrimary(strings.NewReader(primaryCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Samples) != 3 {
		t.Fatalf("samples = %d", len(p.Samples))
	}
	s := p.Samples
	if s[0].Record.ContainsImage != 1 || s[1].Record.ContainsImage != 0 || s[2].Record.ContainsImage != 1 {
		t.Fatal("containsImage not coerced")
	}
	if s[1].Record.ShouldImprove != 1 {
		t.Fatal("shouldImprove not coerced")
	}
	// median of 10 and 30
	if s[1].Record.Length != 20 {
		t.Fatalf("invalid length should take median, got %v", s[1].Record.Length)
	}
	if s[1].Record.PostTimeOfDay != "evening" {
		t.Fatalf("time of day = %q", s[1].Record.PostTimeOfDay)
	}
	// mode tie between evening and morning resolves to evening
	if s[2].Record.PostTimeOfDay != "evening" {
		t.Fatalf("missing time of day should take mode, got %q", s[2].Record.PostTimeOfDay)
	}
	if s[2].Record.TopCommentSentiment != "negative" {
		t.Fatalf("sentiment mode = %q", s[2].Record.TopCommentSentiment)
	}
	if s[1].Likes != 20 || s[2].Shares != 3 {
		t.Fatal("labels not parsed")
	}
	if got := p.Levels[features.DayOfWeek.Name]; len(got) != 2 || got[0] != "monday" {
		t.Fatalf("day levels = %v", got)
	}
}

func TestParsePrimaryRejects(t *testing.T) {
	cases := map[string]string{
		"no rows":       "length,receivedLikes,receivedComments,receivedShares\n",
		"missing label": "length,receivedLikes\n1,2\n",
		"empty":         "",
	}
	for name, body := range cases {
		_, err := ParsePrimary(strings.NewReader(body))
		if !errors.Is(err, ErrTrainingData) {
			t.Fatalf("%s: got %v", name, err)
		}
		var de *DataError
		if !errors.As(err, &de) || de.Stage != "primary" {
			t.Fatalf("%s: stage missing: %v", name, err)
		}
	}
}

const auxCSV = `label,comment,author,subreddit,score,ups,downs,date,created_utc,parent_comment
1,Yeah right?,a,politics,-4,2,-2,2016-10-03 08:15:00,x,p
0,,b,news,1,1,0,2016-10-03 09:00:00,x,p
0,WOW 10 TIMES!,c,,3,3,0,2016-10-04 20:00:00,x,p
1,fine,d,news,,,,garbage,x,p
`

func TestParseAux(t *testing.T) {
	a, err := ParseAux(strings.NewReader(auxCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Comments) != 2 || a.DatesDefaulted {
		t.Fatalf("comments = %d defaulted=%v", len(a.Comments), a.DatesDefaulted)
	}
	c0, c1 := a.Comments[0], a.Comments[1]
	if c0.HasQuestion != 1 || c0.WordCount != 2 || c0.Length != 11 || c0.EngagementScore != 4 {
		t.Fatalf("row 0 stats: %+v", c0)
	}
	if c0.UpvoteRatio != 0.5 || c0.Day != "Monday" || c0.TimeOfDay != "morning" {
		t.Fatalf("row 0 derived: %+v", c0)
	}
	if c1.Subreddit != "unknown" || c1.HasUppercase != 1 || c1.HasNumbers != 1 || c1.HasExclamation != 1 {
		t.Fatalf("row 1 stats: %+v", c1)
	}
	if c1.Day != "Tuesday" || c1.TimeOfDay != "evening" || c1.UpvoteRatio != 1 {
		t.Fatalf("row 1 derived: %+v", c1)
	}
	if c0.SubredditCode != 0 || c1.SubredditCode != 1 || c0.DayCode != 0 || c1.TimeCode != 0 || c0.TimeCode != 1 {
		t.Fatalf("label codes: %+v %+v", c0, c1)
	}
	if math.Abs(a.Stats.AvgWordCount-2.5) > 1e-9 || math.Abs(a.Stats.EngagementRatio-0.75) > 1e-9 {
		t.Fatalf("stats = %+v", a.Stats)
	}
}

func TestParseAuxDefaultsWhenNoDateParses(t *testing.T) {
	body := "comment,subreddit,score,ups,downs,date\nhi there,x,1,0,0,nope\nok,y,2,1,1,\n"
	a, err := ParseAux(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if !a.DatesDefaulted || len(a.Comments) != 2 {
		t.Fatalf("defaulted=%v comments=%d", a.DatesDefaulted, len(a.Comments))
	}
	for _, c := range a.Comments {
		if c.Day != "Monday" || c.TimeOfDay != "afternoon" {
			t.Fatalf("defaults not applied: %+v", c)
		}
	}
	if a.Comments[0].UpvoteRatio != 0 {
		t.Fatal("zero divisor should be floored at 1")
	}
}

func TestParseAuxRejectsEmpty(t *testing.T) {
	for _, body := range []string{"comment,score\n,1\n", "score\n1\n"} {
		if _, err := ParseAux(strings.NewReader(body)); !errors.Is(err, ErrTrainingData) {
			t.Fatalf("got %v", err)
		}
	}
}

func TestCombine(t *testing.T) {
	p, err := ParsePrimary(strings.NewReader(primaryCSV))
	if err != nil {
		t.Fatal(err)
	}
	aux := &features.AuxStats{AvgCommentLength: 40, AvgWordCount: 8, EngagementRatio: 0.5}
	m, err := Combine(p, aux)
	if err != nil {
		t.Fatal(err)
	}
	idx := map[string]int{}
	for i, c := range m.Columns {
		idx[c] = i
	}
	if m.X[0][idx[features.ColTextComplexity]] != 80 || m.X[2][idx[features.ColAvgWordCount]] != 8 {
		t.Fatal("derived or broadcast columns wrong")
	}
	if _, ok := idx["dayOfWeek_Monday"]; ok {
		t.Fatal("reference level should be dropped")
	}
	if m.X[1][idx["dayOfWeek_Tuesday"]] != 1 {
		t.Fatal("Tuesday flag not set")
	}
	for _, c := range []string{features.LabelLikes, "postText", "hashtags", "suggestions"} {
		if _, ok := idx[c]; ok {
			t.Fatalf("%s leaked into features", c)
		}
	}

	primaryOnly, err := Combine(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(primaryOnly.Columns) != len(m.Columns)-5 {
		t.Fatalf("primary-only columns = %v", primaryOnly.Columns)
	}
	if _, err := Combine(&Primary{}, nil); !errors.Is(err, ErrTrainingData) {
		t.Fatalf("got %v", err)
	}
}
