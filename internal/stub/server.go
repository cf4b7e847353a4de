// Package stub serves an in-memory submission service that honours the same
// HTTP contract as the real backend. It exists for local development
// (`triageterm stub`) and for tests; classification is a keyword heuristic.
package stub

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"triageterm/internal/api"
	"triageterm/internal/model"
	"triageterm/internal/util"
)

const (
	maxLimit     = 100
	maxFileBytes = 5 * 1024 * 1024
)

// Server holds submissions in memory, newest first.
type Server struct {
	mu     sync.Mutex
	nextID int64
	subs   []api.SubmissionJSON
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Server)

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{nextID: 1, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler mounts the contract under prefix (for example "/api/v1").
func (s *Server) Handler(prefix string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route(strings.TrimRight(prefix, "/")+"/emails", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Delete("/", s.handleDelete)
		r.Post("/text", s.handleCreateText)
		r.Post("/file", s.handleCreateFile)
		r.Get("/stats", s.handleStats)
	})
	// Route mounts both "/emails" and "/emails/", so list and search share a handler.
	return r
}

// Seed inserts a submission directly, bypassing validation.
func (s *Server) Seed(title, body string, source model.SourceType) api.SubmissionJSON {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(title, body, source)
}

// Len reports how many submissions are stored.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) insertLocked(title, body string, source model.SourceType) api.SubmissionJSON {
	class, reply := classify(body)
	rec := api.SubmissionJSON{
		ID:               s.nextID,
		EmailTitle:       title,
		Message:          body,
		Type:             api.SourceTypeToWire(source),
		AIClassification: &class,
		AISuggestedReply: &reply,
		CreatedAt:        s.now().UTC().Format(time.RFC3339),
	}
	s.nextID++
	s.subs = append([]api.SubmissionJSON{rec}, s.subs...)
	return rec
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil || skip < 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	limit, err := intParam(r, "limit", maxLimit)
	if err != nil || limit < 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	needle := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email_title")))

	s.mu.Lock()
	matched := make([]api.SubmissionJSON, 0, len(s.subs))
	for _, sub := range s.subs {
		if needle == "" || strings.Contains(strings.ToLower(sub.EmailTitle), needle) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	out := api.ListJSON{Submissions: []api.SubmissionJSON{}, Total: len(matched)}
	if skip < len(matched) {
		end := skip + limit
		if end > len(matched) {
			end = len(matched)
		}
		out.Submissions = matched[skip:end]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "ids must not be empty")
		return
	}
	want := make(map[int64]bool, len(req.IDs))
	for _, id := range req.IDs {
		want[id] = true
	}

	s.mu.Lock()
	resp := api.DeleteResponseJSON{DeletedIDs: []int64{}}
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if want[sub.ID] {
			resp.DeletedIDs = append(resp.DeletedIDs, sub.ID)
			delete(want, sub.ID)
			continue
		}
		kept = append(kept, sub)
	}
	s.subs = kept
	s.mu.Unlock()

	resp.DeletedCount = len(resp.DeletedIDs)
	for _, id := range req.IDs {
		if want[id] {
			resp.NotFoundIDs = append(resp.NotFoundIDs, id)
			delete(want, id)
		}
	}
	model.SortIDs(resp.DeletedIDs)
	s.log.Info("stub delete", zap.Int("deleted", resp.DeletedCount), zap.Int("not_found", len(resp.NotFoundIDs)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateText(w http.ResponseWriter, r *http.Request) {
	var req api.CreateTextJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := checkTitle(req.EmailTitle); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	if msg := checkText(req.Content); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	s.mu.Lock()
	rec := s.insertLocked(strings.TrimSpace(req.EmailTitle), req.Content, model.SourcePlainText)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+64*1024)
	if err := r.ParseMultipartForm(maxFileBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file too large: maximum is 5MB")
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	title := r.FormValue("email_title")
	if msg := checkTitle(title); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()
	if hdr.Size >= maxFileBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "file too large: maximum is 5MB")
		return
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read file")
		return
	}

	var (
		text   string
		source model.SourceType
	)
	name := strings.ToLower(hdr.Filename)
	switch {
	case strings.HasSuffix(name, ".txt"):
		source = model.SourceTXTFile
		text = strings.TrimSpace(decodeText(raw))
	case strings.HasSuffix(name, ".pdf"):
		source = model.SourcePDFFile
		text = extractPDFText(raw)
		if text == "" {
			writeDetail(w, http.StatusBadRequest, "could not extract text from PDF")
			return
		}
	default:
		ext := name
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			ext = name[i:]
		}
		writeDetail(w, http.StatusBadRequest, "unsupported file type: "+ext+". Only .txt and .pdf are accepted")
		return
	}
	if msg := checkText(text); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}

	s.mu.Lock()
	rec := s.insertLocked(strings.TrimSpace(title), text, source)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := api.StatsJSON{Total: len(s.subs)}
	for _, sub := range s.subs {
		switch {
		case sub.AIClassification == nil:
			out.NaoClassificados++
		case *sub.AIClassification == api.ClassProductive:
			out.Produtivos++
		case *sub.AIClassification == api.ClassUnproductive:
			out.Improdutivos++
		default:
			out.NaoClassificados++
		}
		switch sub.Type {
		case api.TypePDF:
			out.PDF++
		case api.TypeTXT:
			out.TXT++
		default:
			out.TextoPuro++
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func checkTitle(title string) string {
	n := util.SignificantLen(title)
	switch {
	case n < 2:
		return "title must have at least 2 characters"
	case n > 255:
		return "title must have at most 255 characters"
	}
	return ""
}

func checkText(text string) string {
	n := util.SignificantLen(text)
	switch {
	case n < 10:
		return "text too short: minimum is 10 characters"
	case n > 10000:
		return "text too long: maximum is 10000 characters"
	}
	return ""
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
