package api

import (
	"strings"
	"time"

	"triageterm/internal/model"
)

// Wire shapes of the submission service. Field names and enum spellings are
// the service's own (Portuguese); only this package and the stub service see them.

// SubmissionJSON is the wire form of a submission.
type SubmissionJSON struct {
	ID               int64   `json:"id"`
	EmailTitle       string  `json:"email_title"`
	Message          string  `json:"message"`
	Type             string  `json:"type"`
	AIClassification *string `json:"ai_classification"`
	AISuggestedReply *string `json:"ai_suggested_reply"`
	CreatedAt        string  `json:"created_at"`
}

type ListJSON struct {
	Submissions []SubmissionJSON `json:"submissions"`
	Total       int              `json:"total"`
}

type DeleteRequestJSON struct {
	IDs []int64 `json:"ids"`
}

type DeleteResponseJSON struct {
	DeletedCount int     `json:"deleted_count"`
	DeletedIDs   []int64 `json:"deleted_ids"`
	NotFoundIDs  []int64 `json:"not_found_ids,omitempty"`
}

type CreateTextJSON struct {
	EmailTitle string `json:"email_title"`
	Content    string `json:"content"`
}

type StatsJSON struct {
	Total            int `json:"total"`
	Produtivos       int `json:"produtivos"`
	Improdutivos     int `json:"improdutivos"`
	NaoClassificados int `json:"nao_classificados"`
	PDF              int `json:"pdf"`
	TXT              int `json:"txt"`
	TextoPuro        int `json:"texto_puro"`
}

// Wire enum values.
const (
	TypePlainText = "Texto puro"
	TypeTXT       = "TXT"
	TypePDF       = "PDF"

	ClassProductive   = "PRODUTIVO"
	ClassUnproductive = "IMPRODUTIVO"
	ClassUndefined    = "INDEFINIDO"
)

func sourceTypeFromWire(v string) model.SourceType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "texto puro", "text", "plain-text":
		return model.SourcePlainText
	case "txt":
		return model.SourceTXTFile
	case "pdf":
		return model.SourcePDFFile
	}
	return model.SourceUnknown
}

// SourceTypeToWire is the inverse of the decoding above; the stub service uses it.
func SourceTypeToWire(t model.SourceType) string {
	switch t {
	case model.SourceTXTFile:
		return TypeTXT
	case model.SourcePDFFile:
		return TypePDF
	}
	return TypePlainText
}

func classificationFromWire(v *string) *model.Classification {
	if v == nil {
		return nil
	}
	var c model.Classification
	switch strings.ToUpper(strings.TrimSpace(*v)) {
	case ClassProductive:
		c = model.Productive
	case ClassUnproductive:
		c = model.Unproductive
	default:
		c = model.Unclassified
	}
	return &c
}

// ClassificationToWire renders a classification the way the service stores it.
func ClassificationToWire(c model.Classification) string {
	switch c {
	case model.Productive:
		return ClassProductive
	case model.Unproductive:
		return ClassUnproductive
	}
	return ClassUndefined
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseCreatedAt accepts RFC3339 as well as the zone-less timestamps Python
// emits for naive UTC datetimes.
func parseCreatedAt(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (w SubmissionJSON) toModel() model.Submission {
	return model.Submission{
		ID:             w.ID,
		Title:          w.EmailTitle,
		Body:           w.Message,
		SourceType:     sourceTypeFromWire(w.Type),
		Classification: classificationFromWire(w.AIClassification),
		SuggestedReply: w.AISuggestedReply,
		CreatedAt:      parseCreatedAt(w.CreatedAt),
	}
}

func (w ListJSON) toModel() model.Page {
	subs := make([]model.Submission, len(w.Submissions))
	for i, s := range w.Submissions {
		subs[i] = s.toModel()
	}
	return model.Page{Submissions: subs, Total: w.Total}
}

func (w StatsJSON) toModel() model.Stats {
	return model.Stats{
		Total: w.Total,
		ByClassification: map[model.Classification]int{
			model.Productive:   w.Produtivos,
			model.Unproductive: w.Improdutivos,
			model.Unclassified: w.NaoClassificados,
		},
		ByType: map[model.SourceType]int{
			model.SourcePDFFile:   w.PDF,
			model.SourceTXTFile:   w.TXT,
			model.SourcePlainText: w.TextoPuro,
		},
	}
}
