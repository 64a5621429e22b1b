// Package memu is the HTTP client for the hosted memU memory service.
package memu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-recall/memory"
)

// Endpoint paths of the memU service contract.
const (
	RetrievePath = "/api/v1/memory/retrieve/related-memory-items"
	MemorizePath = "/api/v1/memory/memorize"
)

const (
	opSearch = "search"
	opStore  = "store"

	maxResponseBytes = 4 << 20
	maxDetailRunes   = 256
)

// Client wraps the memU search and memorize endpoints.
// It keeps no state between calls beyond its configuration.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
	metrics    *metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. If its Timeout is zero
// the configured timeout is applied to a copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// New creates a Client. It refuses to build without a usable configuration
// and returns the *memory.ConfigurationError in that case.
func New(config *memory.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Timeout == 0 && config.Timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = config.Timeout
		c.httpClient = &hc
	}
	c.logger = c.logger.WithField("component", "memu")
	return c, nil
}

type retrieveRequest struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

type retrieveResponse struct {
	RelatedMemories []relatedMemory `json:"related_memories"`
	TotalFound      int             `json:"total_found"`
}

type relatedMemory struct {
	Memory          memoryItem `json:"memory"`
	UserID          string     `json:"user_id"`
	AgentID         string     `json:"agent_id"`
	SimilarityScore float64    `json:"similarity_score"`
}

type memoryItem struct {
	MemoryID   string `json:"memory_id"`
	Category   string `json:"category,omitempty"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at,omitempty"`
	HappenedAt string `json:"happened_at,omitempty"`
}

type conversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type memorizeRequest struct {
	Conversation []conversationMessage `json:"conversation"`
	UserID       string                `json:"user_id,omitempty"`
	UserName     string                `json:"user_name,omitempty"`
	AgentID      string                `json:"agent_id,omitempty"`
	AgentName    string                `json:"agent_name,omitempty"`
	Metadata     map[string]string     `json:"metadata,omitempty"`
}

type memorizeResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Search implements memory.Client.
func (c *Client) Search(ctx context.Context, req memory.RecallRequest) ([]memory.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TopK == 0 {
		return nil, nil
	}

	var resp retrieveResponse
	err := c.do(ctx, opSearch, RetrievePath, retrieveRequest{
		UserID:  req.UserID,
		AgentID: req.AgentID,
		Query:   req.Query,
		TopK:    req.TopK,
	}, &resp)
	if err != nil {
		return nil, err
	}

	records := make([]memory.Record, 0, len(resp.RelatedMemories))
	for _, related := range resp.RelatedMemories {
		agentID := related.AgentID
		if agentID == "" {
			agentID = req.AgentID
		}
		records = append(records, memory.Record{
			ID:        related.Memory.MemoryID,
			Content:   related.Memory.Content,
			AgentID:   agentID,
			UserID:    related.UserID,
			CreatedAt: parseTimestamp(related.Memory.CreatedAt, related.Memory.HappenedAt),
			Score:     clampScore(related.SimilarityScore),
		})
	}

	c.logger.Debugf("retrieved %d memories (total_found=%d)", len(records), resp.TotalFound)
	return records, nil
}

// Store implements memory.Client. The returned id is the service task id
// under which the memory is processed.
func (c *Client) Store(ctx context.Context, req memory.WriteRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var resp memorizeResponse
	err := c.do(ctx, opStore, MemorizePath, memorizeRequest{
		Conversation: []conversationMessage{{Role: "user", Content: req.Content}},
		UserID:       req.UserID,
		UserName:     req.UserName,
		AgentID:      req.AgentID,
		AgentName:    req.AgentName,
		Metadata:     req.Metadata,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", &memory.RemoteServiceError{
			Op:   opStore,
			Kind: memory.FailureMalformed,
			Err:  errors.New("response has no task_id"),
		}
	}

	c.logger.Debugf("memorize task submitted: task_id=%s status=%s", resp.TaskID, resp.Status)
	return resp.TaskID, nil
}

// do performs one authenticated JSON round trip. It never retries.
func (c *Client) do(ctx context.Context, op, path string, in, out interface{}) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, path, in, out)
	c.metrics.observe(op, time.Since(start), err)
	if err != nil {
		c.logger.WithField("op", op).WithError(err).Debug("request failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &memory.RemoteServiceError{Op: op, Kind: memory.ClassifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &memory.RemoteServiceError{
			Op:   op,
			Kind: memory.ClassifyTransportError(err),
			Err:  fmt.Errorf("read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &memory.RemoteServiceError{
			Op:         op,
			Kind:       memory.FailureStatus,
			StatusCode: resp.StatusCode,
			Err:        statusDetail(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &memory.RemoteServiceError{
			Op:   op,
			Kind: memory.FailureMalformed,
			Err:  fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// statusDetail extracts a short explanation from an error body.
func statusDetail(data []byte) error {
	var body struct {
		Detail  interface{} `json:"detail"`
		Message string      `json:"message"`
		Error   string      `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Message != "":
			return errors.New(body.Message)
		case body.Error != "":
			return errors.New(body.Error)
		case body.Detail != nil:
			if s, ok := body.Detail.(string); ok {
				return errors.New(s)
			}
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	if runes := []rune(text); len(runes) > maxDetailRunes {
		text = string(runes[:maxDetailRunes]) + "..."
	}
	return errors.New(text)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp returns the first candidate that parses, or the zero time.
func parseTimestamp(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
