package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"mutegate/pkg/logger"
	"mutegate/pkg/voice"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// memberPageSize is Discord's maximum page size for member listings.
const memberPageSize = 1000

// APIError is a non-2xx response from Discord.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("discord: %s (status %d, code %d)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("discord: request failed with status %d", e.Status)
}

// Client talks to the Discord REST API for a single guild. It implements
// voice.Provider.
type Client struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	http    *http.Client
	token   string
	guildID string
	log     *logger.Logger
}

// New creates a client for the given bot token and guild.
func New(botToken, guildID string, log *logger.Logger) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		http:    &http.Client{},
		token:   botToken,
		guildID: guildID,
		log:     log,
	}
}

// member is the wire shape of a guild member.
type member struct {
	User struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	} `json:"user"`
	Nick string `json:"nick"`
}

func (m member) toVoice() voice.Member {
	display := m.Nick
	if display == "" {
		display = m.User.GlobalName
	}
	if display == "" {
		display = m.User.Username
	}
	return voice.Member{
		DisplayName: display,
		Nickname:    m.Nick,
		ID:          m.User.ID,
	}
}

// FetchMember fetches one guild member by id.
func (c *Client) FetchMember(ctx context.Context, id string) (voice.Member, error) {
	var m member
	path := fmt.Sprintf("/guilds/%s/members/%s", c.guildID, url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, "", &m); err != nil {
		return voice.Member{}, err
	}
	return m.toVoice(), nil
}

// Members lists all guild members in Discord's pagination order.
func (c *Client) Members(ctx context.Context) ([]voice.Member, error) {
	var out []voice.Member
	after := ""

	for {
		path := fmt.Sprintf("/guilds/%s/members?limit=%d", c.guildID, memberPageSize)
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}

		var page []member
		if err := c.do(ctx, http.MethodGet, path, nil, "", &page); err != nil {
			return nil, err
		}

		for _, m := range page {
			out = append(out, m.toVoice())
		}

		if len(page) < memberPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// SetMute changes a member's server-mute flag.
func (c *Client) SetMute(ctx context.Context, id string, on bool, reason string) error {
	body := map[string]bool{"mute": on}
	path := fmt.Sprintf("/guilds/%s/members/%s", c.guildID, url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, path, body, reason, nil)
}

// SetDeaf changes a member's server-deafen flag.
func (c *Client) SetDeaf(ctx context.Context, id string, on bool, reason string) error {
	body := map[string]bool{"deaf": on}
	path := fmt.Sprintf("/guilds/%s/members/%s", c.guildID, url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, path, body, reason, nil)
}

// VerifyCommunity checks the configured guild is reachable with the bot
// token. Startup aborts when it is not.
func (c *Client) VerifyCommunity(ctx context.Context) error {
	path := fmt.Sprintf("/guilds/%s", c.guildID)
	return c.do(ctx, http.MethodGet, path, nil, "", nil)
}

// GatewayURL asks Discord where the bot should open its websocket session.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, "", &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// do performs one API call. No retries: a failed call surfaces immediately.
func (c *Client) do(ctx context.Context, method, path string, body any, reason string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode discord response: %w", err)
		}
	}

	return nil
}
