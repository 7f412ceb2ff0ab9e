// Package msapi is the authenticated transport to the Nerve management
// system. Every call carries the stored session id, is traced and counted,
// and fails with a *RequestError on a transport problem or a non-2xx status.
package msapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/metrics"
	"github.com/balaji-balu/nerve-cli/internal/telemetry"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	session Session
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(sess Session, opts ...Option) *Client {
	c := &Client{
		session: Session{ID: sess.ID, BaseURL: strings.TrimSuffix(sess.BaseURL, "/")},
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
		tracer:  telemetry.Tracer("msapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() Session { return c.session }

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v. context names the call in the
// FormatError returned for a body that is not valid JSON for v.
func (r *Response) Decode(context string, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return Formatf(context, "invalid JSON response: %v", err)
	}
	return nil
}

// Do sends an authenticated request. A non-nil body is sent as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, true)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// GetJSON issues a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return resp.Decode("GET "+path, v)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !c.session.Valid() {
		return nil, &RequestError{Method: method, Path: path, Err: ErrNotLoggedIn}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.session.BaseURL+path, body)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("sessionId", c.session.ID)
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	return req, nil
}

func (c *Client) send(req *http.Request, path string, authenticated bool) (*Response, error) {
	route := path
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}

	ctx, span := c.tracer.Start(req.Context(), req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(route),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, route, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &RequestError{Method: req.Method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(req.Method, route, resp.StatusCode, time.Since(start))
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &RequestError{Method: req.Method, Path: path, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("management system response",
		zap.String("method", req.Method),
		zap.String("path", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return out, nil
	}

	rerr := &RequestError{
		Method:  req.Method,
		Path:    path,
		Status:  resp.StatusCode,
		Message: ServerMessage(body, resp.StatusCode),
	}
	if authenticated && resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("session does not work anymore, please log in")
		rerr.Err = ErrSessionExpired
	}
	span.SetStatus(codes.Error, rerr.Error())
	return out, rerr
}

// ServerMessage extracts the human readable message from an error body:
// the "message" of the first element of a list, or of an object.
func ServerMessage(body []byte, status int) string {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		if msg, ok := list[0]["message"].(string); ok {
			return msg
		}
		return "No message returned."
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
		return "No message returned."
	}
	return fmt.Sprintf("Server response: %d", status)
}
