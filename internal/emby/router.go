package emby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Line is one playback route offered by the router.
type Line struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

// UnmarshalJSON accepts both numeric and string indexes.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index json.RawMessage `json:"index"`
		Name  string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Name = raw.Name
	l.Index = ""
	idx := bytes.TrimSpace(raw.Index)
	if len(idx) == 0 || string(idx) == "null" {
		return nil
	}
	if idx[0] == '"' {
		return json.Unmarshal(idx, &l.Index)
	}
	var n json.Number
	if err := json.Unmarshal(idx, &n); err != nil {
		return fmt.Errorf("line index: %w", err)
	}
	l.Index = n.String()
	return nil
}

// RouterClient talks to the line router. Every call is a GET.
type RouterClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRouterClient builds a RouterClient; timeout <= 0 defaults to 10s.
func NewRouterClient(baseURL, apiKey string, timeout time.Duration) *RouterClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RouterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Lines lists every available line.
func (c *RouterClient) Lines(ctx context.Context) ([]Line, error) {
	var lines []Line
	if err := c.get(ctx, "/api/route", &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// UserLine returns the line currently selected for accountID.
func (c *RouterClient) UserLine(ctx context.Context, accountID string) (Line, error) {
	var line Line
	err := c.get(ctx, "/api/route/"+url.PathEscape(accountID), &line)
	return line, err
}

// SelectLine switches accountID to the line at index.
func (c *RouterClient) SelectLine(ctx context.Context, accountID, index string) error {
	return c.get(ctx, "/api/route/"+url.PathEscape(accountID)+"/"+url.PathEscape(index), nil)
}

func (c *RouterClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("router GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode router %s response: %w", path, err)
	}
	return nil
}
