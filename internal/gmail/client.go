// Package gmail imports Gmail messages as submissions. Authentication uses
// the OAuth desktop flow with a cached token.
package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Auth locates the OAuth client secret and token cache. Prompt and Input are
// used for the browser flow; they default to stderr and stdin.
type Auth struct {
	CredentialsPath string
	TokenPath       string
	Prompt          io.Writer
	Input           io.Reader
	// RedirectWait bounds how long the loopback listener waits before
	// falling back to a pasted code.
	RedirectWait time.Duration
}

// NewService returns a read-only Gmail service, authorising in the browser
// when no valid cached token exists.
func NewService(ctx context.Context, a Auth) (*gmailv1.Service, error) {
	b, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", a.CredentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	if a.TokenPath == "" {
		a.TokenPath = filepath.Join(filepath.Dir(a.CredentialsPath), "token.json")
	}

	if tok, err := readToken(a.TokenPath); err == nil {
		svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
		if err == nil {
			_, err = svc.Users.GetProfile("me").Context(ctx).Do()
		}
		if err == nil {
			return svc, nil
		}
		// Stale token: drop it and authorise again.
		_ = os.Remove(a.TokenPath)
	}

	tok, err := authorize(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	if err := saveToken(a.TokenPath, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// saveToken writes through a temp file so a crash never leaves half a token.
func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// authorize runs a loopback listener to catch the redirect and falls back
// to a pasted code or redirect URL.
func authorize(ctx context.Context, cfg *oauth2.Config, a Auth) (*oauth2.Token, error) {
	prompt := a.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	input := a.Input
	if input == nil {
		input = os.Stdin
	}
	wait := a.RedirectWait
	if wait <= 0 {
		wait = 2 * time.Minute
	}

	if ln, err := net.Listen("tcp", "127.0.0.1:0"); err == nil {
		code, err := awaitRedirect(ctx, cfg, ln, prompt, wait)
		switch {
		case err == nil:
			return exchange(ctx, cfg, code, prompt)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		fmt.Fprintln(prompt, "No redirect received; falling back to manual paste.")
	}

	fmt.Fprintln(prompt, "Open this URL in your browser to authorise triageterm:")
	fmt.Fprintln(prompt, cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprintln(prompt, "Paste the code or the full redirect URL, then press Enter.")
	fmt.Fprint(prompt, "> ")

	sc := bufio.NewScanner(input)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := codeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, cfg, code, prompt)
}

func awaitRedirect(ctx context.Context, cfg *oauth2.Config, ln net.Listener, prompt io.Writer, wait time.Duration) (string, error) {
	redirect := fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
	prev := cfg.RedirectURL
	cfg.RedirectURL = redirect

	codes := make(chan string, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case codes <- code:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	fmt.Fprintln(prompt, "Open this URL in your browser to authorise triageterm:")
	fmt.Fprintln(prompt, cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprintf(prompt, "Waiting for redirect on %s\n", redirect)

	select {
	case <-ctx.Done():
		cfg.RedirectURL = prev
		return "", ctx.Err()
	case code := <-codes:
		// The exchange must use the same redirect URL, so it stays set.
		return code, nil
	case <-time.After(wait):
		cfg.RedirectURL = prev
		return "", errors.New("timed out waiting for redirect")
	}
}

// codeFromInput accepts either a bare code or a redirect URL carrying one.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code string, prompt io.Writer) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	fmt.Fprintln(prompt, "Authentication successful.")
	return tok, nil
}
