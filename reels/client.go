package reels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"music-bot-go/logcolors"
	"music-bot-go/proxy"

	log "github.com/sirupsen/logrus"
)

const (
	igAPIBase   = "https://i.instagram.com/api/v1"
	igWebBase   = "https://www.instagram.com"
	igUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	igAppID     = "936619743392459"
)

var (
	// ErrLoginRequired means the session is missing or no longer valid.
	ErrLoginRequired = errors.New("instagram login required")
	// ErrChallengeRequired means Instagram wants an interactive checkpoint.
	ErrChallengeRequired = errors.New("instagram challenge required")
	// ErrBadCredentials means the username/password pair was rejected.
	ErrBadCredentials = errors.New("instagram rejected the credentials")
)

// Client is a minimal Instagram private API client bound to one user's
// session cookie. Clients are cached per user and probed before reuse.
type Client struct {
	http      *http.Client
	apiBase   string
	webBase   string
	sessionID string
	csrfToken string
	username  string
}

// NewClient builds a client routed through the configured Instagram proxy.
func NewClient(resolver *proxy.Resolver) (*Client, error) {
	transport, err := resolver.Transport(proxy.KindInstagram)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		apiBase: igAPIBase,
		webBase: igWebBase,
	}, nil
}

// Session returns the serializable session state, for persisting after a
// successful login.
func (c *Client) Session() SessionData {
	return SessionData{SessionID: c.sessionID, CSRFToken: c.csrfToken, Username: c.username}
}

// RestoreSession installs previously persisted session state.
func (c *Client) RestoreSession(s SessionData) {
	c.sessionID = s.SessionID
	c.csrfToken = s.CSRFToken
	c.username = s.Username
}

// SessionData is what survives restarts in the persistent store.
type SessionData struct {
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token"`
	Username  string `json:"username"`
}

// Probe checks that the session still works by requesting the timeline
// endpoint. Called before reusing a cached client, outside any cache lock.
func (c *Client) Probe(ctx context.Context) error {
	if c.sessionID == "" {
		return ErrLoginRequired
	}
	resp, err := c.get(ctx, c.apiBase+"/feed/timeline/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

// Login authenticates with username and password through the web login
// endpoint and captures the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	csrf, err := c.fetchCSRFToken(ctx)
	if err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}

	form := url.Values{}
	form.Set("username", username)
	// The web endpoint accepts a timestamped plain-text envelope when no
	// public key encryption is negotiated.
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", time.Now().Unix(), password))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webBase+"/api/v1/web/accounts/login/ajax/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRFToken", csrf)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var payload struct {
		Authenticated bool   `json:"authenticated"`
		Status        string `json:"status"`
		Message       string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	if strings.Contains(payload.Message, "challenge") || resp.StatusCode == http.StatusBadRequest && payload.Status == "fail" && strings.Contains(payload.Message, "checkpoint") {
		return ErrChallengeRequired
	}
	if !payload.Authenticated {
		return ErrBadCredentials
	}

	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "sessionid":
			c.sessionID = cookie.Value
		case "csrftoken":
			c.csrfToken = cookie.Value
		}
	}
	if c.sessionID == "" {
		return errors.New("login succeeded but no session cookie was set")
	}
	c.username = username
	log.Infof("%s Logged in as %s", logcolors.LogReels, username)
	return nil
}

// MediaInfo fetches the raw media item for a post shortcode.
func (c *Client) MediaInfo(ctx context.Context, shortcode string) (*Media, error) {
	pk, err := MediaPKFromShortcode(shortcode)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, fmt.Sprintf("%s/media/%d/info/", c.apiBase, pk))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload struct {
		Items []*Media `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding media info: %w", err)
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("no media items for shortcode %s", shortcode)
	}
	return payload.Items[0], nil
}

func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.webBase+"/")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "csrftoken" {
			c.csrfToken = cookie.Value
			return cookie.Value, nil
		}
	}
	return "", errors.New("no csrftoken cookie")
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)
	return c.http.Do(req)
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", igUserAgent)
	req.Header.Set("X-IG-App-ID", igAppID)
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}
	if c.csrfToken != "" {
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: c.csrfToken})
	}
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrLoginRequired
	case status == http.StatusBadRequest:
		return ErrChallengeRequired
	default:
		return fmt.Errorf("unexpected instagram status %d", status)
	}
}
