// Package gmail is a minimal client for the Gmail REST API: message listing,
// message retrieval and OAuth refresh-token exchange.
package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrUnauthorized is matched by errors for HTTP 401 responses
var ErrUnauthorized = errors.New("gmail: unauthorized")

// ErrRefreshUnavailable is returned when a token cannot be refreshed
// because the refresh token or client credentials are missing
var ErrRefreshUnavailable = errors.New("gmail: token refresh unavailable")

// APIError is a non-2xx response from the Gmail API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Config holds the client endpoints and OAuth client credentials
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// Client talks to the Gmail API on behalf of a mailbox access token
type Client struct {
	baseURL    string
	httpClient *http.Client
	oauth      *oauth2.Config
}

// NewClient creates a Gmail client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// MessageRef is an entry of a message listing
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// MessagePage is one page of a message listing. NextPageToken is empty on
// the last page.
type MessagePage struct {
	Messages           []MessageRef `json:"messages"`
	NextPageToken      string       `json:"nextPageToken"`
	ResultSizeEstimate int          `json:"resultSizeEstimate"`
}

// Header is a single message header
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body is the (base64url encoded) content of a message part
type Body struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// Part is a MIME part of a message payload
type Part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     Body     `json:"body"`
	Parts    []Part   `json:"parts"`
}

// Message is a full Gmail message resource
type Message struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	Snippet      string `json:"snippet"`
	InternalDate string `json:"internalDate"`
	Payload      Part   `json:"payload"`
}

// ListMessages returns one page of up to max message references matching
// query, newest first. An empty pageToken requests the first page.
func (c *Client) ListMessages(ctx context.Context, accessToken, query, pageToken string, max int) (*MessagePage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(max))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var page MessagePage
	if err := c.get(ctx, accessToken, "/messages?"+params.Encode(), &page); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if page.Messages == nil {
		page.Messages = []MessageRef{}
	}
	return &page, nil
}

// GetMessage retrieves the full message resource
func (c *Client) GetMessage(ctx context.Context, accessToken, id string) (*Message, error) {
	var msg Message
	if err := c.get(ctx, accessToken, "/messages/"+url.PathEscape(id)+"?format=full", &msg); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return &msg, nil
}

// RefreshToken exchanges a refresh token for a new access token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" || c.oauth.ClientID == "" || c.oauth.ClientSecret == "" {
		return nil, ErrRefreshUnavailable
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
