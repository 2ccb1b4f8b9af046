package podio

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

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrAuth is returned when the workspace rejects the credentials or token
var ErrAuth = errors.New("podio authentication failed")

const defaultHTTPTimeout = 30 * time.Second

// APIError is a non-2xx response from the workspace API
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("podio: unexpected %d response from %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Client is an authenticated Podio API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	location   *time.Location
	logger     *zap.Logger
}

// Authenticate performs the password grant and returns a token source that
// refreshes the access token when it expires
func Authenticate(ctx context.Context, cfg config.PodioConfig, httpClient *http.Client) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: client id and username are required", ErrAuth)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(cfg.BaseURL, "/") + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	token, err := oauthCfg.PasswordCredentialsToken(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	// The refresh context must outlive the caller's request context
	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return oauthCfg.TokenSource(refreshCtx, token), nil
}

// NewClient authenticates against the workspace and returns a ready client
func NewClient(ctx context.Context, cfg config.PodioConfig, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}

	tokens, err := Authenticate(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	logger.Info("Authenticated with Podio", zap.String("username", cfg.Username))
	return newClient(cfg.BaseURL, httpClient, tokens, cfg.Location, logger), nil
}

// loc is the workspace timezone used for timestamps; nil means UTC
func newClient(baseURL string, httpClient *http.Client, tokens oauth2.TokenSource, loc *time.Location, logger *zap.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		location:   loc,
		logger:     logger,
	}
}

// ItemPage is one page of a filtered item listing
type ItemPage struct {
	Total int64
	Items []gjson.Result
}

// FilterItems lists items of an app, newest first
func (c *Client) FilterItems(ctx context.Context, appID int64, limit, offset int) (*ItemPage, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/item/app/%d/filter/", appID), map[string]any{
		"limit":     limit,
		"offset":    offset,
		"sort_by":   "created_on",
		"sort_desc": true,
	})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("podio: invalid JSON in item listing")
	}
	result := gjson.ParseBytes(body)
	return &ItemPage{
		Total: result.Get("total").Int(),
		Items: result.Get("items").Array(),
	}, nil
}

// ListComments returns the comment thread attached to an item
func (c *Client) ListComments(ctx context.Context, itemID int64) ([]core.Comment, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/comment/item/%d/", itemID), nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("podio: invalid JSON in comment listing")
	}

	var comments []core.Comment
	for _, raw := range gjson.ParseBytes(body).Array() {
		comment := core.Comment{
			ID:    raw.Get("comment_id").Int(),
			Value: raw.Get("value").String(),
		}
		if created, err := ParseTimestamp(raw.Get("created_on").String(), c.location); err == nil {
			comment.CreatedAt = created
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// AddComment attaches a new comment to an item
func (c *Client) AddComment(ctx context.Context, itemID int64, text string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/comment/item/%d/", itemID), map[string]string{"value": text})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("podio: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("podio: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	request.Header.Set("Authorization", "OAuth2 "+token.AccessToken)

	c.logger.Debug("Podio request", zap.String("method", method), zap.String("path", path))
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("podio: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("podio: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{
		StatusCode: response.StatusCode,
		Method:     method,
		Path:       path,
		Body:       strings.TrimSpace(string(responseBody)),
	}
	if response.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w", ErrAuth, apiErr)
	}
	return nil, apiErr
}
