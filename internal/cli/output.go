package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"triageterm/internal/listsync"
	"triageterm/internal/model"
	"triageterm/internal/store"
)

type submissionOut struct {
	ID             int64  `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	Type           string `json:"type" yaml:"type"`
	Classification string `json:"classification" yaml:"classification"`
	SuggestedReply string `json:"suggested_reply,omitempty" yaml:"suggested_reply,omitempty"`
	CreatedAt      string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Body           string `json:"body,omitempty" yaml:"body,omitempty"`
}

type pageOut struct {
	Page        int             `json:"page" yaml:"page"`
	PageSize    int             `json:"page_size" yaml:"page_size"`
	TotalPages  int             `json:"total_pages" yaml:"total_pages"`
	Total       int             `json:"total" yaml:"total"`
	Filter      string          `json:"filter,omitempty" yaml:"filter,omitempty"`
	Submissions []submissionOut `json:"submissions" yaml:"submissions"`
}

type deleteOut struct {
	DeletedCount int     `json:"deleted_count" yaml:"deleted_count"`
	DeletedIDs   []int64 `json:"deleted_ids" yaml:"deleted_ids"`
	NotFoundIDs  []int64 `json:"not_found_ids,omitempty" yaml:"not_found_ids,omitempty"`
}

type statsOut struct {
	Total            int            `json:"total" yaml:"total"`
	ByClassification map[string]int `json:"by_classification" yaml:"by_classification"`
	ByType           map[string]int `json:"by_type" yaml:"by_type"`
}

type activityOut struct {
	At     string `json:"at" yaml:"at"`
	Kind   string `json:"kind" yaml:"kind"`
	Detail string `json:"detail" yaml:"detail"`
	OK     bool   `json:"ok" yaml:"ok"`
}

func toSubmissionOut(s model.Submission, withBody bool) submissionOut {
	out := submissionOut{
		ID:             s.ID,
		Title:          s.Title,
		Type:           s.SourceType.Label(),
		Classification: s.ClassificationLabel(),
	}
	if s.SuggestedReply != nil {
		out.SuggestedReply = *s.SuggestedReply
	}
	if !s.CreatedAt.IsZero() {
		out.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if withBody {
		out.Body = s.Body
	}
	return out
}

func toPageOut(v listsync.ViewState) pageOut {
	out := pageOut{
		Page:        v.Page,
		PageSize:    v.PageSize,
		TotalPages:  v.TotalPages(),
		Total:       v.Total,
		Filter:      v.Filter,
		Submissions: make([]submissionOut, len(v.Rows)),
	}
	for i, s := range v.Rows {
		out.Submissions[i] = toSubmissionOut(s, false)
	}
	return out
}

func toStatsOut(s model.Stats) statsOut {
	out := statsOut{
		Total:            s.Total,
		ByClassification: map[string]int{},
		ByType:           map[string]int{},
	}
	for k, v := range s.ByClassification {
		out.ByClassification[string(k)] = v
	}
	for k, v := range s.ByType {
		out.ByType[string(k)] = v
	}
	return out
}

func toActivityOut(acts []store.Activity) []activityOut {
	out := make([]activityOut, len(acts))
	for i, a := range acts {
		out[i] = activityOut{
			At:     a.At.Local().Format("2006-01-02 15:04:05"),
			Kind:   a.Kind,
			Detail: a.Detail,
			OK:     a.OK,
		}
	}
	return out
}

// writeOut renders v as JSON or YAML, or calls table for the default
// human-readable form.
func writeOut(cmd *cobra.Command, app *App, v any, table func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	switch app.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func pageTable(p pageOut) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tCLASS\tCREATED")
		for _, s := range p.Submissions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, oneLine(s.Title), s.Type, s.Classification, s.CreatedAt)
		}
		first := (p.Page-1)*p.PageSize + 1
		last := first + len(p.Submissions) - 1
		if len(p.Submissions) == 0 {
			first, last = 0, 0
		}
		fmt.Fprintf(w, "\npage %d of %d\t%d-%d of %d items\n", p.Page, p.TotalPages, first, last, p.Total)
	}
}

func submissionTable(s submissionOut) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "id\t%d\n", s.ID)
		fmt.Fprintf(w, "title\t%s\n", oneLine(s.Title))
		fmt.Fprintf(w, "type\t%s\n", s.Type)
		fmt.Fprintf(w, "classification\t%s\n", s.Classification)
		fmt.Fprintf(w, "created\t%s\n", s.CreatedAt)
		if s.SuggestedReply != "" {
			fmt.Fprintf(w, "suggested reply\t%s\n", oneLine(s.SuggestedReply))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
