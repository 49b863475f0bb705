package runpod

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
)

// DefaultBaseURL is the RunPod GraphQL endpoint.
const DefaultBaseURL = "https://api.runpod.io/graphql"

// ErrPodNotFound is returned by GetPod when the API has no pod with the given ID.
var ErrPodNotFound = errors.New("pod not found")

// APIError is returned when the API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// GraphQLError carries the errors array of an otherwise successful response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// Client is a thin RunPod API client. It holds the API key for its own
// requests only; there is no package-level credential.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the GraphQL endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// NewClient creates a new RunPod client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPods lists all pods of the account
func (c *Client) ListPods(ctx context.Context) ([]*Pod, error) {
	var result struct {
		Myself struct {
			Pods []*Pod `json:"pods"`
		} `json:"myself"`
	}
	if err := c.do(ctx, listPodsQuery, nil, &result); err != nil {
		return nil, err
	}

	return result.Myself.Pods, nil
}

// GetPod retrieves a pod by ID
func (c *Client) GetPod(ctx context.Context, id string) (*Pod, error) {
	var result struct {
		Pod *Pod `json:"pod"`
	}
	if err := c.do(ctx, getPodQuery, map[string]any{"podId": id}, &result); err != nil {
		return nil, err
	}
	if result.Pod == nil {
		return nil, fmt.Errorf("%w: %s", ErrPodNotFound, id)
	}

	return result.Pod, nil
}

// CreatePod deploys a new on-demand pod. The returned pod may have an empty
// ID when the platform accepted the request without allocating one.
func (c *Client) CreatePod(ctx context.Context, in *CreatePodInput) (*Pod, error) {
	var result struct {
		Pod *Pod `json:"podFindAndDeployOnDemand"`
	}
	if err := c.do(ctx, createPodMutation, map[string]any{"input": in}, &result); err != nil {
		return nil, err
	}
	if result.Pod == nil {
		return &Pod{}, nil
	}

	return result.Pod, nil
}

// ResumePod starts a stopped pod with the given number of GPUs
func (c *Client) ResumePod(ctx context.Context, id string, gpuCount int) (*Pod, error) {
	var result struct {
		Pod *Pod `json:"podResume"`
	}
	input := map[string]any{"podId": id, "gpuCount": gpuCount}
	if err := c.do(ctx, resumePodMutation, map[string]any{"input": input}, &result); err != nil {
		return nil, err
	}

	return result.Pod, nil
}

// StopPod stops a running pod
func (c *Client) StopPod(ctx context.Context, id string) (*Pod, error) {
	var result struct {
		Pod *Pod `json:"podStop"`
	}
	input := map[string]any{"podId": id}
	if err := c.do(ctx, stopPodMutation, map[string]any{"input": input}, &result); err != nil {
		return nil, err
	}

	return result.Pod, nil
}

// TerminatePod terminates a pod
func (c *Client) TerminatePod(ctx context.Context, id string) error {
	input := map[string]any{"podId": id}
	return c.do(ctx, terminatePodMutation, map[string]any{"input": input}, nil)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do posts a GraphQL operation and decodes its data member into out
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.makeRequest(ctx, body)
	if err != nil {
		return err
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range envelope.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}

	return nil
}

// makeRequest makes an HTTP request to the RunPod API
func (c *Client) makeRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
