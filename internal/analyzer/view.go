package analyzer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"news-analyzer/internal/models"
)

// Texts shown to the user.
const (
	LabelIdle       = "Analizar"
	LabelBusy       = "Analizando…"
	NoTermsMessage  = "Sin términos destacados."
	termsPrefix     = "Términos influyentes: "
	confidenceLabel = "Confianza: "
	patternLabel    = " • Patrón: "
)

// MaxTerms is how many explanation terms are displayed at most.
const MaxTerms = 8

// BadgeStyle selects how the label badge is drawn.
type BadgeStyle string

const (
	BadgeNone     BadgeStyle = ""
	BadgeNegative BadgeStyle = "negative"
	BadgePositive BadgeStyle = "positive"
)

// ViewState is everything the user sees. Each cycle rebuilds it from scratch.
type ViewState struct {
	TriggerEnabled bool       `json:"trigger_enabled"`
	TriggerLabel   string     `json:"trigger_label"`
	CardVisible    bool       `json:"card_visible"`
	Confidence     string     `json:"confidence"`
	Badge          string     `json:"badge"`
	BadgeStyle     BadgeStyle `json:"badge_style"`
	WarningVisible bool       `json:"warning_visible"`
	Terms          string     `json:"terms"`
	Raw            string     `json:"raw"`
}

// IdleView is the state before any analysis ran.
func IdleView() ViewState {
	return ViewState{
		TriggerEnabled: true,
		TriggerLabel:   LabelIdle,
	}
}

// resetView hides the result area while keeping the trigger as it is.
func resetView(s ViewState) ViewState {
	return ViewState{
		TriggerEnabled: s.TriggerEnabled,
		TriggerLabel:   s.TriggerLabel,
	}
}

// FormatConfidence renders the score as a percentage with one decimal,
// followed by the detected pattern when there is one.
func FormatConfidence(score float64, pattern string) string {
	text := confidenceLabel + strconv.FormatFloat(score*100, 'f', 1, 64) + "%"
	if pattern != "" {
		text += patternLabel + pattern
	}
	return text
}

// BadgeStyleFor returns the negative style for "fake" in any letter case.
func BadgeStyleFor(label string) BadgeStyle {
	if strings.EqualFold(label, "fake") {
		return BadgeNegative
	}
	return BadgePositive
}

// FormatTerms joins the first MaxTerms terms, or returns the placeholder.
func FormatTerms(explanation *models.ExplanationResult) string {
	if explanation == nil || len(explanation.TopTerms) == 0 {
		return NoTermsMessage
	}

	terms := explanation.TopTerms
	if len(terms) > MaxTerms {
		terms = terms[:MaxTerms]
	}
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, t.Term)
	}

	list := strings.Join(names, ", ")
	if list == "" {
		return NoTermsMessage
	}
	return termsPrefix + list
}

// RenderPrediction fills the verdict fields of s from p.
func RenderPrediction(s ViewState, p *models.PredictionResult) ViewState {
	s.Confidence = FormatConfidence(p.Score, p.Pattern)
	s.Badge = p.Label
	s.BadgeStyle = BadgeStyleFor(p.Label)
	s.WarningVisible = p.Abstain
	s.Raw = rawJSON(p)
	return s
}

// RenderExplanation fills the terms field of s from e.
func RenderExplanation(s ViewState, e *models.ExplanationResult) ViewState {
	s.Terms = FormatTerms(e)
	return s
}

func rawJSON(p *models.PredictionResult) string {
	var buf bytes.Buffer
	if len(p.Raw) > 0 && json.Indent(&buf, p.Raw, "", "  ") == nil {
		return buf.String()
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}
