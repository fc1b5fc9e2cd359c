package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mcdev12/listenroom/go/internal/room"
)

// Client talks to the external song catalog search API. The catalog is
// an opaque, fallible lookup; it is called from the HTTP proxy layer
// and never from inside a room operation.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewClient creates a catalog client against baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

// SetHeader sets a header on every outgoing request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout overrides the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}

// searchResponse mirrors the catalog API envelope.
type searchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total   int         `json:"total"`
		Results []room.Song `json:"results"`
	} `json:"data"`
}

// SearchSongs runs a free-text song search and returns the matching
// catalog entries.
func (c *Client) SearchSongs(query string, page, limit int) ([]room.Song, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxSearchLimit {
		limit = DefaultSearchLimit
	}

	endpoint := fmt.Sprintf("%s?query=%s&page=%d&limit=%d",
		SearchSongsEndpoint, url.QueryEscape(query), page, limit)
	body, err := c.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return response.Data.Results, nil
}
