package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"triageterm/internal/model"
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the submission service. One Client is built at startup and
// handed to every component that needs it.
type Client struct {
	baseURL string
	http    HTTPDoer
	log     *zap.Logger
}

type Option func(*Client)

// WithHTTPDoer replaces the underlying HTTP client.
func WithHTTPDoer(d HTTPDoer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client rooted at baseURL (for example
// "http://localhost:8000/api/v1").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OAuthConfig enables client-credentials authentication against the service.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewHTTPClient returns the HTTP client used for service calls: plain when
// no token URL is configured, otherwise one that attaches bearer tokens.
func NewHTTPClient(ctx context.Context, timeout time.Duration, auth OAuthConfig) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if auth.TokenURL == "" {
		return &http.Client{Timeout: timeout}
	}
	cc := clientcredentials.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		TokenURL:     auth.TokenURL,
		Scopes:       auth.Scopes,
	}
	hc := cc.Client(ctx)
	hc.Timeout = timeout
	return hc
}

// List fetches one unfiltered page.
func (c *Client) List(ctx context.Context, skip, limit int) (model.Page, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	var out ListJSON
	if err := c.do(ctx, "list", http.MethodGet, "/emails/?"+q.Encode(), nil, "", &out); err != nil {
		return model.Page{}, err
	}
	return out.toModel(), nil
}

// Search fetches one page of submissions whose title matches title.
func (c *Client) Search(ctx context.Context, skip, limit int, title string) (model.Page, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("email_title", title)
	var out ListJSON
	if err := c.do(ctx, "search", http.MethodGet, "/emails?"+q.Encode(), nil, "", &out); err != nil {
		return model.Page{}, err
	}
	return out.toModel(), nil
}

// Delete removes the given submissions. Ids the service no longer has are
// reported in NotFoundIDs rather than failing the call.
func (c *Client) Delete(ctx context.Context, ids []int64) (model.DeleteResult, error) {
	body, err := json.Marshal(DeleteRequestJSON{IDs: ids})
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("marshal delete: %w", err)
	}
	var out DeleteResponseJSON
	if err := c.do(ctx, "delete", http.MethodDelete, "/emails", bytes.NewReader(body), "application/json", &out); err != nil {
		return model.DeleteResult{}, err
	}
	return model.DeleteResult{
		DeletedCount: out.DeletedCount,
		DeletedIDs:   out.DeletedIDs,
		NotFoundIDs:  out.NotFoundIDs,
	}, nil
}

// CreateText submits raw text for classification.
func (c *Client) CreateText(ctx context.Context, title, content string) (model.Submission, error) {
	body, err := json.Marshal(CreateTextJSON{EmailTitle: title, Content: content})
	if err != nil {
		return model.Submission{}, fmt.Errorf("marshal create: %w", err)
	}
	var out SubmissionJSON
	if err := c.do(ctx, "create-text", http.MethodPost, "/emails/text", bytes.NewReader(body), "application/json", &out); err != nil {
		return model.Submission{}, err
	}
	return out.toModel(), nil
}

// CreateFile uploads a .txt or .pdf file for classification.
func (c *Client) CreateFile(ctx context.Context, title string, file model.Upload) (model.Submission, error) {
	if file.Open == nil {
		return model.Submission{}, &Error{Op: "create-file", Err: fmt.Errorf("no file content")}
	}
	rc, err := file.Open()
	if err != nil {
		return model.Submission{}, &Error{Op: "create-file", Err: fmt.Errorf("open %s: %w", file.Name, err)}
	}
	defer rc.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("email_title", title); err != nil {
		return model.Submission{}, fmt.Errorf("write title field: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	ct := file.MIMEType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return model.Submission{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return model.Submission{}, &Error{Op: "create-file", Err: fmt.Errorf("read %s: %w", file.Name, err)}
	}
	if err := mw.Close(); err != nil {
		return model.Submission{}, fmt.Errorf("close multipart: %w", err)
	}

	var out SubmissionJSON
	if err := c.do(ctx, "create-file", http.MethodPost, "/emails/file", &buf, mw.FormDataContentType(), &out); err != nil {
		return model.Submission{}, err
	}
	return out.toModel(), nil
}

// Stats fetches the aggregate counters.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var out StatsJSON
	if err := c.do(ctx, "stats", http.MethodGet, "/emails/stats", nil, "", &out); err != nil {
		return model.Stats{}, err
	}
	return out.toModel(), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("new request: %w", err)}
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("service request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err))
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.Debug("service request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", reqID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, Status: resp.StatusCode, Detail: parseDetail(raw)}
	}
	if v == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
