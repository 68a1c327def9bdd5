package ayrshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autobuzz/autobuzz/internal/config"
)

// platformMap translates the platform names used in the app to the tokens
// Ayrshare expects. Unmapped platforms pass through lowercased so a newly
// supported platform does not require a code change here.
var platformMap = map[string]string{
	"twitter":   "twitter",
	"linkedin":  "linkedin",
	"instagram": "instagram",
	"facebook":  "facebook",
}

func NormalizePlatform(platform string) string {
	lower := strings.ToLower(strings.TrimSpace(platform))
	if mapped, ok := platformMap[lower]; ok {
		return mapped
	}
	return lower
}

// Client wraps the Ayrshare REST API.
type Client struct {
	config *config.AyrshareConfig
	logger *zap.Logger
	client *http.Client
}

func NewClient(cfg *config.AyrshareConfig, logger *zap.Logger) *Client {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

type PublishRequest struct {
	Content    string
	Platform   string
	ProfileKey string
	ImageURL   string
}

type PlatformPostID struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	PostURL  string `json:"postUrl"`
}

// PublishResult is the uniform outcome of one publish attempt. Error holds a
// display-safe reason when Success is false.
type PublishResult struct {
	Success bool
	PostID  string
	PostIDs []PlatformPostID
	Error   string
}

// Publish sends one post to Ayrshare on behalf of the profile identified by
// ProfileKey. The response body is untrusted: only a top-level
// status=="success" counts as success, even on HTTP 200. Media URLs that are
// not https are dropped from the request rather than sent unvalidated.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	body := map[string]any{
		"post":      req.Content,
		"platforms": []string{NormalizePlatform(req.Platform)},
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" && strings.HasPrefix(u, "https://") {
		body["mediaUrls"] = []string{u}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/post", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Profile-Key", req.ProfileKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach publishing API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	parsed := parseResponse(raw)
	transportOK := resp.StatusCode >= 200 && resp.StatusCode < 300

	if transportOK && parsed != nil && parsed.Status == "success" {
		result := &PublishResult{
			Success: true,
			PostID:  parsed.ID,
			PostIDs: parsed.PostIDs,
		}
		c.logger.Debug("Publish succeeded",
			zap.String("platform", NormalizePlatform(req.Platform)),
			zap.String("post_id", result.PostID))
		return result, nil
	}

	reason := extractFailure(resp.StatusCode, transportOK, parsed)
	c.logger.Debug("Publish rejected",
		zap.Int("status_code", resp.StatusCode),
		zap.String("reason", reason))
	return &PublishResult{Success: false, Error: reason}, nil
}

// CreateProfile creates an Ayrshare user profile and returns its profile key.
func (c *Client) CreateProfile(ctx context.Context, title string) (string, error) {
	jsonBody, err := json.Marshal(map[string]any{"title": title})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/profiles", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach publishing API: %w", err)
	}
	defer resp.Body.Close()

	var response struct {
		Status     string `json:"status"`
		ProfileKey string `json:"profileKey"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || response.Status != "success" {
		if response.Message != "" {
			return "", fmt.Errorf("failed to create profile: %s", response.Message)
		}
		return "", fmt.Errorf("failed to create profile (%d)", resp.StatusCode)
	}
	if response.ProfileKey == "" {
		return "", fmt.Errorf("publishing API did not return a profile key")
	}

	return response.ProfileKey, nil
}

// GenerateProfileLink returns a JWT-signed URL for the Ayrshare social
// linking page. Requires the Business Plan domain and private key.
func (c *Client) GenerateProfileLink(ctx context.Context, profileKey, redirect string) (string, error) {
	jsonBody, err := json.Marshal(map[string]any{
		"domain":     c.config.Domain,
		"privateKey": strings.TrimSpace(c.config.PrivateKey),
		"profileKey": profileKey,
		"redirect":   redirect,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/profiles/generateJWT", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach publishing API: %w", err)
	}
	defer resp.Body.Close()

	var response struct {
		Status  string `json:"status"`
		URL     string `json:"url"`
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || response.Status != "success" {
		if response.Message != "" {
			return "", fmt.Errorf("failed to generate profile link: %s", response.Message)
		}
		return "", fmt.Errorf("failed to generate profile link (%d)", resp.StatusCode)
	}

	if response.URL != "" {
		return response.URL, nil
	}
	if response.Token != "" {
		return fmt.Sprintf("https://profile.ayrshare.com?domain=%s&jwt=%s", c.config.Domain, response.Token), nil
	}
	return "", fmt.Errorf("publishing API did not return a link URL")
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
}
