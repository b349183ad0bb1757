package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 512

// PollResult is one observation of an extraction job. Result is set only
// when Status is DONE; Reason carries the service's payload on FAILED.
type PollResult struct {
	Status Status  `json:"status"`
	Result *Result `json:"result,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Client talks to the document information extraction service.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, hc *retryablehttp.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// Submit starts an extraction job for a stored document and returns the job
// id the service assigned.
func (c *Client) Submit(ctx context.Context, documentID string) (string, error) {
	if strings.TrimSpace(documentID) == "" {
		return "", fmt.Errorf("submit extraction job: empty document id")
	}
	body, err := c.do(ctx, http.MethodPost, "/jobs", map[string]string{"documentId": documentID})
	if err != nil {
		return "", fmt.Errorf("submit extraction job: %w", err)
	}
	doc := gjson.ParseBytes(body)
	jobID := doc.Get("jobId").String()
	if jobID == "" {
		jobID = doc.Get("id").String()
	}
	if jobID == "" {
		return "", fmt.Errorf("submit extraction job: response has no job id: %s", truncate(body))
	}
	return jobID, nil
}

// Poll fetches the job status once. Statuses other than DONE and FAILED are
// reported as PENDING.
func (c *Client) Poll(ctx context.Context, jobID string) (PollResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("poll extraction job %s: %w", jobID, err)
	}
	switch Status(strings.ToUpper(gjson.GetBytes(body, "status").String())) {
	case StatusDone:
		res := ParseResult(body)
		return PollResult{Status: StatusDone, Result: &res}, nil
	case StatusFailed:
		return PollResult{Status: StatusFailed, Reason: truncate(body)}, nil
	default:
		return PollResult{Status: StatusPending}, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body any
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
