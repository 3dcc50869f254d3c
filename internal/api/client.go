// Package api is the HTTP client for the time-records backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/ttr/internal/model"
)

const (
	recordsPath = "/api/timerecords"

	// AuthHeader carries the session token on every records request.
	AuthHeader = "AuthToken"
	// LogoutAuthHeader carries the session token on logout.
	LogoutAuthHeader = "X-AUTH-TOKEN"

	defaultTimeout = 30 * time.Second
)

// Client talks to the records REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// clientOptions collects the settings of New. The http.Client is assembled
// after all options ran, so their order does not matter.
type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	debug      bool
	logger     zerolog.Logger
}

// Option configures a Client in New.
type Option func(*clientOptions)

// WithHTTPClient replaces the underlying http.Client. The timeout, debug and
// auth settings are still applied on top of a copy of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithTimeout bounds every request. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithDebugLogging dumps every request and response at debug level.
func WithDebugLogging(enabled bool) Option {
	return func(o *clientOptions) { o.debug = enabled }
}

// New creates a client for baseURL. ts supplies the session token; pass nil
// for unauthenticated calls such as login.
func New(baseURL string, ts oauth2.TokenSource, opts ...Option) *Client {
	o := clientOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{Timeout: defaultTimeout}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		logger:     o.logger,
	}
	if o.debug {
		hc.Transport = &debugTransport{base: hc.Transport, logger: &c.logger}
	}
	if ts != nil {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = &tokenTransport{base: base, src: oauth2.ReuseTokenSource(nil, ts)}
	}
	return c
}

// tokenTransport injects the session token into the AuthToken header.
type tokenTransport struct {
	base http.RoundTripper
	src  oauth2.TokenSource
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set(AuthHeader, tok.AccessToken)
	return t.base.RoundTrip(cloned)
}

// Query filters the records listing.
type Query struct {
	From     time.Time
	To       time.Time
	Contains string
}

// dataEnvelope is the success body shape: {"data": ...}.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// ListRecords fetches the records in [From, To] whose note contains
// Contains. The result is in server order.
func (c *Client) ListRecords(ctx context.Context, q Query) ([]model.TimeRecord, error) {
	params := url.Values{}
	params.Set("dateFrom", q.From.Format(time.RFC3339))
	params.Set("dateTo", q.To.Format(time.RFC3339))
	if q.Contains != "" {
		params.Set("contains", q.Contains)
	}
	var records []model.TimeRecord
	if err := c.do(ctx, http.MethodGet, recordsPath+"?"+params.Encode(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRecord posts a new record. The record's ID is never sent; TmpID is
// sent so the server can echo it back.
func (c *Client) CreateRecord(ctx context.Context, r model.TimeRecord) (model.TimeRecord, error) {
	body := r.Clone()
	body.ID = ""
	var out model.TimeRecord
	if err := c.do(ctx, http.MethodPost, recordsPath, body, &out); err != nil {
		return model.TimeRecord{}, err
	}
	return out, nil
}

// UpdateRecord replaces the record identified by r.ID.
func (c *Client) UpdateRecord(ctx context.Context, r model.TimeRecord) (model.TimeRecord, error) {
	if r.ID == "" {
		return model.TimeRecord{}, fmt.Errorf("update record: id is required")
	}
	var out model.TimeRecord
	if err := c.do(ctx, http.MethodPut, recordsPath+"/"+url.PathEscape(r.ID), r, &out); err != nil {
		return model.TimeRecord{}, err
	}
	return out, nil
}

// DeleteRecord soft-deletes the record with the given id.
func (c *Client) DeleteRecord(ctx context.Context, r model.TimeRecord) error {
	if r.ID == "" {
		return fmt.Errorf("delete record: id is required")
	}
	return c.do(ctx, http.MethodDelete, recordsPath+"/"+url.PathEscape(r.ID), r, nil)
}

// UndeleteRecord restores a soft-deleted record. The returned record is
// nil when the server answers without data.
func (c *Client) UndeleteRecord(ctx context.Context, r model.TimeRecord) (*model.TimeRecord, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("undelete record: id is required")
	}
	var out *model.TimeRecord
	if err := c.do(ctx, http.MethodPut, recordsPath+"/"+url.PathEscape(r.ID)+"/undelete", r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends a JSON request and decodes the "data" member of the response
// into out (if out is non-nil and the body carries data).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, body, err := c.send(ctx, method, path, in, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return newError(resp, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s %s data: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns the response with its fully read
// body. The response body is already closed.
func (c *Client) send(ctx context.Context, method, path string, in any, header http.Header) (*http.Response, []byte, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request done")
	return resp, body, nil
}
