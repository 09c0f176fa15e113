// Package languagetool is a minimal client for the LanguageTool HTTP API.
// It implements scorer.GrammarChecker.
package languagetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

const (
	// DefaultURL is the public LanguageTool endpoint
	DefaultURL = "https://api.languagetool.org"
	// DefaultLanguage is the language code sent with every check
	DefaultLanguage = "en-US"

	checkPath     = "/v2/check"
	languagesPath = "/v2/languages"
	maxErrorBody  = 512
)

// ErrUnexpectedStatus is returned for non-200 responses
var ErrUnexpectedStatus = errors.New("unexpected LanguageTool response status")

// Client talks to a LanguageTool server
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithLanguage sets the language code, e.g. "en-GB"
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP timeout of the default client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// New creates a client for the server at baseURL.
// An empty baseURL selects DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   DefaultLanguage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type checkResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	Message string `json:"message"`
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
	Rule    struct {
		ID string `json:"id"`
	} `json:"rule"`
}

// Check submits text and returns every reported match
func (c *Client) Check(ctx context.Context, text string) ([]scorer.GrammarMatch, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build LanguageTool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var body checkResponse
	if err := c.do(req, &body); err != nil {
		return nil, err
	}

	matches := make([]scorer.GrammarMatch, len(body.Matches))
	for i, m := range body.Matches {
		matches[i] = scorer.GrammarMatch{
			RuleID:  m.Rule.ID,
			Message: m.Message,
			Offset:  m.Offset,
			Length:  m.Length,
		}
	}
	return matches, nil
}

// Ping checks that the server answers the languages endpoint
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+languagesPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build LanguageTool request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var languages []json.RawMessage
	return c.do(req, &languages)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LanguageTool request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode LanguageTool response: %w", err)
	}
	return nil
}
