package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Number is a float64 that also decodes from JSON booleans, numeric strings
// and "True"/"False" strings. null and "" decode to 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	switch b[0] {
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*n = boolNumber(v)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		switch strings.ToLower(s) {
		case "":
			*n = 0
			return nil
		case "true":
			*n = 1
			return nil
		case "false":
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Category is a categorical value. Any JSON value other than a string
// decodes to "", which matches no level.
type Category string

func (c *Category) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = Category(s)
	return nil
}

func boolNumber(v bool) Number {
	if v {
		return 1
	}
	return 0
}

// PostRecord is the prediction-time description of a post and its author.
type PostRecord struct {
	PostText            string   `json:"postText,omitempty"`
	Hashtags            string   `json:"hashtags,omitempty"`
	Length              Number   `json:"length" validate:"gte=0"`
	ContainsImage       Number   `json:"containsImage" validate:"gte=0,lte=1"`
	PostTimeOfDay       Category `json:"postTimeOfDay"`
	DayOfWeek           Category `json:"dayOfWeek"`
	TopCommentSentiment Category `json:"topCommentSentiment"`
	ShouldImprove       Number   `json:"shouldImprove" validate:"gte=0,lte=1"`
	UserFollowers       Number   `json:"userFollowers" validate:"gte=0"`
	UserFollowing       Number   `json:"userFollowing" validate:"gte=0"`
	UserKarma           Number   `json:"userKarma"`
	AccountAgeDays      Number   `json:"accountAgeDays" validate:"gte=0"`
	AvgEngagementRate   Number   `json:"avgEngagementRate" validate:"gte=0,lte=1"`
	AvgLikes            Number   `json:"avgLikes" validate:"gte=0"`
	AvgComments         Number   `json:"avgComments" validate:"gte=0"`
}

// DefaultUser mirrors the profile assumed when only post text is known.
func DefaultUser() PostRecord {
	return PostRecord{
		UserFollowers:     1000,
		UserFollowing:     500,
		UserKarma:         5000,
		AccountAgeDays:    365,
		AvgEngagementRate: 0.05,
		AvgLikes:          50,
		AvgComments:       10,
	}
}

// FromText builds a record for bare post text on top of a user profile.
func FromText(text string, user PostRecord) PostRecord {
	r := user
	r.PostText = text
	r.Length = Number(len([]rune(text)))
	r.ContainsImage = 0
	r.PostTimeOfDay = "afternoon"
	r.DayOfWeek = "Monday"
	r.TopCommentSentiment = "positive"
	r.ShouldImprove = 0
	return r
}

// Prediction is the assembled output of one engagement prediction.
type Prediction struct {
	Likes     int    `json:"predicted_likes"`
	Comments  int    `json:"predicted_comments"`
	Shares    int    `json:"predicted_shares"`
	ModelInfo string `json:"model_info"`
}
