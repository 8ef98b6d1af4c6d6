// Package emby talks to the Emby media server that owns the actual user
// accounts, and to the optional line router in front of it.
package emby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// User is the subset of an Emby user record the service reads.
type User struct {
	ID               string     `json:"Id"`
	Name             string     `json:"Name"`
	DateCreated      *time.Time `json:"DateCreated,omitempty"`
	LastLoginDate    *time.Time `json:"LastLoginDate,omitempty"`
	LastActivityDate *time.Time `json:"LastActivityDate,omitempty"`
	Policy           struct {
		IsDisabled bool `json:"IsDisabled"`
	} `json:"Policy"`
}

// Counts is the catalog summary.
type Counts struct {
	MovieCount   int `json:"MovieCount"`
	SeriesCount  int `json:"SeriesCount"`
	EpisodeCount int `json:"EpisodeCount"`
}

// Policy is the access policy document applied to a user.
type Policy struct {
	IsAdministrator                 bool `json:"IsAdministrator"`
	IsHidden                        bool `json:"IsHidden"`
	IsHiddenRemotely                bool `json:"IsHiddenRemotely"`
	IsDisabled                      bool `json:"IsDisabled"`
	EnableRemoteControlOfOtherUsers bool `json:"EnableRemoteControlOfOtherUsers"`
	EnableSharedDeviceControl       bool `json:"EnableSharedDeviceControl"`
	EnableRemoteAccess              bool `json:"EnableRemoteAccess"`
	EnableLiveTvManagement          bool `json:"EnableLiveTvManagement"`
	EnableLiveTvAccess              bool `json:"EnableLiveTvAccess"`
	EnableMediaPlayback             bool `json:"EnableMediaPlayback"`
	EnableAudioPlaybackTranscoding  bool `json:"EnableAudioPlaybackTranscoding"`
	EnableVideoPlaybackTranscoding  bool `json:"EnableVideoPlaybackTranscoding"`
	EnablePlaybackRemuxing          bool `json:"EnablePlaybackRemuxing"`
	EnableContentDeletion           bool `json:"EnableContentDeletion"`
	EnableContentDownloading        bool `json:"EnableContentDownloading"`
	EnableSubtitleDownloading       bool `json:"EnableSubtitleDownloading"`
	EnableSubtitleManagement        bool `json:"EnableSubtitleManagement"`
	EnableSyncTranscoding           bool `json:"EnableSyncTranscoding"`
	EnableMediaConversion           bool `json:"EnableMediaConversion"`
	EnableAllDevices                bool `json:"EnableAllDevices"`
	AllowCameraUpload               bool `json:"AllowCameraUpload"`
	SimultaneousStreamLimit         int  `json:"SimultaneousStreamLimit"`
}

// DefaultPolicy is applied to new and unbanned accounts.
func DefaultPolicy() Policy {
	return Policy{
		IsHidden:                true,
		IsHiddenRemotely:        true,
		EnableRemoteAccess:      true,
		EnableMediaPlayback:     true,
		EnableAllDevices:        true,
		SimultaneousStreamLimit: 3,
	}
}

// BannedPolicy disables login and playback.
func BannedPolicy() Policy {
	return Policy{
		IsHidden:            true,
		IsHiddenRemotely:    true,
		IsDisabled:          true,
		EnableMediaPlayback: true,
		EnableAllDevices:    true,
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an Emby REST client. Outbound calls share one token bucket.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid emby url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		logger:  logger,
	}, nil
}

// CreateAccount creates a passwordless user and returns its id.
func (c *Client) CreateAccount(ctx context.Context, name string) (string, error) {
	var created User
	body := map[string]any{"Name": name, "HasPassword": false}
	if err := c.do(ctx, http.MethodPost, "/emby/Users/New", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("emby create user: response has no id")
	}
	return created.ID, nil
}

// ResetPassword clears the user's password.
func (c *Client) ResetPassword(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodPost, "/emby/users/"+url.PathEscape(accountID)+"/Password",
		map[string]any{"ResetPassword": true}, nil)
}

// SetPassword resets the password and then sets it to password.
func (c *Client) SetPassword(ctx context.Context, accountID, password string) error {
	if err := c.ResetPassword(ctx, accountID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/emby/users/"+url.PathEscape(accountID)+"/Password",
		map[string]any{"ResetPassword": false, "CurrentPw": "", "NewPw": password}, nil)
}

// ApplyDefaultPolicy restores normal access.
func (c *Client) ApplyDefaultPolicy(ctx context.Context, accountID string) error {
	return c.applyPolicy(ctx, accountID, DefaultPolicy())
}

// ApplyBannedPolicy disables the account.
func (c *Client) ApplyBannedPolicy(ctx context.Context, accountID string) error {
	return c.applyPolicy(ctx, accountID, BannedPolicy())
}

func (c *Client) applyPolicy(ctx context.Context, accountID string, p Policy) error {
	return c.do(ctx, http.MethodPost, "/emby/Users/"+url.PathEscape(accountID)+"/Policy", p, nil)
}

// AccountInfo fetches the user record.
func (c *Client) AccountInfo(ctx context.Context, accountID string) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/emby/Users/"+url.PathEscape(accountID), nil, &u)
	return u, err
}

// CountCatalog returns movie, series and episode counts.
func (c *Client) CountCatalog(ctx context.Context) (Counts, error) {
	var counts Counts
	err := c.do(ctx, http.MethodGet, "/emby/Items/Counts", nil, &counts)
	return counts, err
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/emby/System/Info", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("emby %s %s: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("emby request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("emby %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("emby request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("emby request rejected", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode emby %s response: %w", path, err)
	}
	return nil
}
