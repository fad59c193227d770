package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/pkg/logging"
)

// envelope is the wire shape every upstream endpoint answers with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client talks to the authoritative CRM API.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenProvider
	tracer trace.Tracer
	logger *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer overrides the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewClient creates a remote API client.
func NewClient(base string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
		tracer: otel.Tracer("leadflow.internal.remote"),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MessageFilters narrows cross-lead message listings.
type MessageFilters struct {
	LeadID         string
	Type           messages.Type
	UnreadOnly     bool
	IncludePrivate bool
	Limit          int
}

func (f MessageFilters) query() url.Values {
	q := url.Values{}
	if f.LeadID != "" {
		q.Set("leadId", f.LeadID)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.UnreadOnly {
		q.Set("unread", "true")
	}
	if f.IncludePrivate {
		q.Set("includePrivate", "true")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// LeadMessages fetches the message list for one lead.
func (c *Client) LeadMessages(ctx context.Context, leadID string, limit int, includePrivate bool) ([]messages.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if includePrivate {
		q.Set("includePrivate", "true")
	}
	var out []messages.Message
	err := c.do(ctx, http.MethodGet, "/leads/"+url.PathEscape(leadID)+"/messages", q, nil, &out)
	return out, err
}

// ListMessages fetches a cross-lead message listing.
func (c *Client) ListMessages(ctx context.Context, filters MessageFilters) ([]messages.Message, error) {
	var out []messages.Message
	err := c.do(ctx, http.MethodGet, "/messages", filters.query(), nil, &out)
	return out, err
}

// ListLeads fetches the authoritative lead set.
func (c *Client) ListLeads(ctx context.Context) ([]leads.Lead, error) {
	var out []leads.Lead
	err := c.do(ctx, http.MethodGet, "/leads", nil, nil, &out)
	return out, err
}

// SendPayload is the body of a message-creating write.
type SendPayload struct {
	LeadID   string            `json:"leadId"`
	Subject  string            `json:"subject,omitempty"`
	Content  string            `json:"content"`
	Priority messages.Priority `json:"priority,omitempty"`
}

// CreateInternalNote posts an internal note.
func (c *Client) CreateInternalNote(ctx context.Context, payload SendPayload) (messages.Message, error) {
	var out messages.Message
	err := c.do(ctx, http.MethodPost, "/messages/internal", nil, payload, &out)
	return out, err
}

// CreateClientMessage posts a client-visible message.
func (c *Client) CreateClientMessage(ctx context.Context, payload SendPayload) (messages.Message, error) {
	var out messages.Message
	err := c.do(ctx, http.MethodPost, "/messages/client", nil, payload, &out)
	return out, err
}

// ReplyPayload is the body of a reply write.
type ReplyPayload struct {
	Content string `json:"content"`
}

// Reply posts a reply quoting an existing message.
func (c *Client) Reply(ctx context.Context, messageID string, payload ReplyPayload) (messages.Message, error) {
	var out messages.Message
	err := c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/reply", nil, payload, &out)
	return out, err
}

// MarkRead flags a message as read server-side.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/read", nil, nil, nil)
}

// DeleteMessage removes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(messageID), nil, nil, nil)
}

// statusPayload is the body of a lead status transition.
type statusPayload struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

// UpdateLeadStatus patches a lead's pipeline status.
func (c *Client) UpdateLeadStatus(ctx context.Context, leadID string, status leads.Status, actor string) (leads.Lead, error) {
	var out leads.Lead
	err := c.do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(leadID)+"/status", nil, statusPayload{Status: string(status), Actor: actor}, &out)
	return out, err
}

// do runs one envelope-shaped request. The token check happens before any
// network I/O so an unauthenticated caller fails without a wire round trip.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "remote."+method+" "+path,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		span.RecordError(err)
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response envelope"}
	}
	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		span.RecordError(apiErr)
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("remote: decode response data: %w", err)
		}
	}
	return nil
}
