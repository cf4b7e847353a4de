package model

import (
	"io"
	"sort"
	"time"
)

// SourceType records how a submission entered the system.
type SourceType string

const (
	SourcePlainText SourceType = "plain-text"
	SourceTXTFile   SourceType = "txt-file"
	SourcePDFFile   SourceType = "pdf-file"
	SourceUnknown   SourceType = "unknown"
)

// Label is the short form shown in tables.
func (s SourceType) Label() string {
	switch s {
	case SourcePlainText:
		return "Text"
	case SourceTXTFile:
		return "TXT"
	case SourcePDFFile:
		return "PDF"
	}
	return "?"
}

// Classification is the outcome assigned by the classification service.
// The client never sets it.
type Classification string

const (
	Productive   Classification = "productive"
	Unproductive Classification = "unproductive"
	Unclassified Classification = "unclassified"
)

func (c Classification) Label() string {
	switch c {
	case Productive:
		return "Productive"
	case Unproductive:
		return "Unproductive"
	}
	return "Unclassified"
}

// Submission is one email record as returned by the submission service.
type Submission struct {
	ID             int64
	Title          string
	Body           string
	SourceType     SourceType
	Classification *Classification // nil until the service has classified it
	SuggestedReply *string
	CreatedAt      time.Time
}

// ClassificationLabel renders the classification, "-" when absent.
func (s Submission) ClassificationLabel() string {
	if s.Classification == nil {
		return "-"
	}
	return s.Classification.Label()
}

// Page is one window of submissions plus the count matching the filter that produced it.
type Page struct {
	Submissions []Submission
	Total       int
}

func SubmissionIDs(subs []Submission) []int64 {
	ids := make([]int64, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	return ids
}

// DeleteResult reports what a bulk delete actually removed.
type DeleteResult struct {
	DeletedCount int
	DeletedIDs   []int64
	NotFoundIDs  []int64 // ids the service no longer had
}

// Partial reports whether some requested ids were already gone.
func (r DeleteResult) Partial() bool { return len(r.NotFoundIDs) > 0 }

// Stats is an eventually consistent snapshot of the whole corpus.
type Stats struct {
	Total            int
	ByClassification map[Classification]int
	ByType           map[SourceType]int
}

// SortIDs sorts ids ascending in place and returns them.
func SortIDs(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Upload is a file chosen for a file-mode submission.
type Upload struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}
