// Package documents is the client for the document management service that
// holds original and redacted invoice PDFs.
package documents

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"invoicematch/internal/util"
)

const mimePDF = "application/pdf"

type Metadata struct {
	FileName string
	MimeType string
}

type Client struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, hc *retryablehttp.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// Store uploads content and returns the id the service assigned. All failures
// wrap util.ErrStorage.
func (c *Client) Store(ctx context.Context, content []byte, meta Metadata) (string, error) {
	if meta.MimeType == "" {
		meta.MimeType = mimePDF
	}
	payload, err := json.Marshal(map[string]string{
		"fileName":      meta.FileName,
		"contentBase64": base64.StdEncoding.EncodeToString(content),
		"mimeType":      meta.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode upload: %v", util.ErrStorage, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/documents", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", meta.FileName, err)
	}
	doc := gjson.ParseBytes(body)
	for _, key := range []string{"id", "documentId", "dmsId"} {
		if id := doc.Get(key).String(); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: store %s: response carries no document id", util.ErrStorage, meta.FileName)
}

// Fetch downloads the content of a stored document.
func (c *Client) Fetch(ctx context.Context, documentID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID)+"/content", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", documentID, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*retryablehttp.Request, error) {
	var raw any
	if body != nil {
		raw = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", util.ErrStorage, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorage, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", util.ErrStorage, err)
	}
	if resp.StatusCode >= 400 {
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, fmt.Errorf("%w: status %d: %s", util.ErrStorage, resp.StatusCode, body)
	}
	return body, nil
}
