// Package httpsource is a handler type backed by a JSON-over-HTTP API with
// conventional resource routes:
//
//	GET {base}/{path}/{id}      one record
//	GET {base}/{path}           every record
//	GET {base}/{path}?q=params  filtered records, params encoded as dot params
//
// A Source implements handler.Retriever, handler.Lister and handler.Finder,
// so collections over it reconcile with a single request.
package httpsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/transform"
)

// StatusError is returned for a non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// NotFound reports whether the remote record does not exist
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Source fetches records of one resource
type Source struct {
	base     *url.URL
	path     string
	client   *http.Client
	envelope string
	headers  http.Header
	logger   *zap.Logger
}

// Option configures a Source
type Option func(*Source)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithEnvelope reads list responses from a key of a wrapping object, such
// as {"data": [...]}
func WithEnvelope(key string) Option {
	return func(s *Source) { s.envelope = key }
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(s *Source) { s.headers.Add(key, value) }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a source for the resource at path under baseURL
func New(baseURL, path string, opts ...Option) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	s := &Source{
		base:    base,
		path:    strings.Trim(path, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		headers: make(http.Header),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Retrieve fetches one record
func (s *Source) Retrieve(ctx context.Context, req *handler.Request) (handler.Payload, error) {
	var payload handler.Payload
	if err := s.get(ctx, req, s.url(req.RemoteID, nil), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ListAll fetches every record of the resource
func (s *Source) ListAll(ctx context.Context, req *handler.Request) ([]handler.Payload, error) {
	return s.list(ctx, req, s.url("", nil))
}

// Find fetches the records matching params
func (s *Source) Find(ctx context.Context, req *handler.Request, params handler.Payload) ([]handler.Payload, error) {
	q := url.Values{}
	if len(params) > 0 {
		q.Set("q", transform.EncodeDotParams(map[string]any(params)))
	}
	return s.list(ctx, req, s.url("", q))
}

func (s *Source) list(ctx context.Context, req *handler.Request, u string) ([]handler.Payload, error) {
	if s.envelope == "" {
		var payloads []handler.Payload
		if err := s.get(ctx, req, u, &payloads); err != nil {
			return nil, err
		}
		return payloads, nil
	}

	var wrapped map[string]json.RawMessage
	if err := s.get(ctx, req, u, &wrapped); err != nil {
		return nil, err
	}
	raw, ok := wrapped[s.envelope]
	if !ok {
		return nil, fmt.Errorf("GET %s: response has no %q key", u, s.envelope)
	}
	var payloads []handler.Payload
	if err := decode(bytes.NewReader(raw), &payloads); err != nil {
		return nil, fmt.Errorf("GET %s: failed to decode %q: %w", u, s.envelope, err)
	}
	return payloads, nil
}

func (s *Source) url(id string, q url.Values) string {
	u := s.base.JoinPath(s.path)
	if id != "" {
		u = u.JoinPath(url.PathEscape(id))
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Source) get(ctx context.Context, req *handler.Request, u string, into any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	if err := authorize(httpReq, req); err != nil {
		return err
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("remote request",
		zap.String("handler", req.Handler),
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{
			Method:     http.MethodGet,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := decode(resp.Body, into); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", u, err)
	}
	return nil
}

// decode keeps numbers as json.Number so ids beyond 2^53 survive intact
func decode(r io.Reader, into any) error {
	d := json.NewDecoder(r)
	d.UseNumber()
	return d.Decode(into)
}

// authorize sets the Authorization header from the request's credential. A
// bare token is sent as a bearer token; a value with a scheme is sent as is.
func authorize(httpReq *http.Request, req *handler.Request) error {
	authz, err := req.AuthorizationString()
	if err != nil {
		return err
	}
	if authz == "" {
		return nil
	}
	if !strings.Contains(authz, " ") {
		authz = "Bearer " + authz
	}
	httpReq.Header.Set("Authorization", authz)
	return nil
}
