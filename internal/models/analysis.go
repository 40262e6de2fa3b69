package models

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf16"
)

// MinTextLength is the shortest free text accepted when no URL is given.
const MinTextLength = 30

// ErrInputTooShort is returned when neither a URL nor enough text was provided.
var ErrInputTooShort = errors.New("Escribe al menos 30 caracteres o ingresa una URL.")

// Input is the raw content typed by the user.
type Input struct {
	Text string `json:"text" form:"text"`
	URL  string `json:"url" form:"url"`
}

// Normalize returns a copy with surrounding whitespace removed.
func (in Input) Normalize() Input {
	return Input{
		Text: strings.TrimSpace(in.Text),
		URL:  strings.TrimSpace(in.URL),
	}
}

// Validate checks a normalized input. A URL alone is enough; otherwise the
// text must be at least MinTextLength characters long.
func (in Input) Validate() error {
	if in.URL != "" {
		return nil
	}
	if textLength(in.Text) < MinTextLength {
		return ErrInputTooShort
	}
	return nil
}

// textLength counts UTF-16 code units, the way the browser page measures the
// textarea, so characters outside the BMP count twice.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// Request converts a normalized input into its wire form, sending empty
// values as null.
func (in Input) Request() AnalysisRequest {
	var req AnalysisRequest
	if in.Text != "" {
		text := in.Text
		req.Text = &text
	}
	if in.URL != "" {
		url := in.URL
		req.URL = &url
	}
	return req
}

// AnalysisRequest is the body sent to both /predict and /explain.
type AnalysisRequest struct {
	Text *string `json:"text"`
	URL  *string `json:"url"`
}

// PredictionResult is the verdict returned by /predict.
type PredictionResult struct {
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	Pattern string  `json:"pattern,omitempty"`
	Abstain bool    `json:"abstain"`

	// Raw holds the response body as received.
	Raw json.RawMessage `json:"-"`
}

// Term is a single influential term from /explain.
type Term struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ExplanationResult is the body returned by /explain.
type ExplanationResult struct {
	TopTerms []Term `json:"top_terms,omitempty"`
}

// LabelStat aggregates stored predictions for one label.
type LabelStat struct {
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// Metrics is the body returned by /metrics.
type Metrics struct {
	Total   int         `json:"total"`
	ByLabel []LabelStat `json:"by_label"`
}
