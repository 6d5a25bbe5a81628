package ringcentral

import (
	"bytes"
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

	"swampbot/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultServerURL is the production platform endpoint.
const DefaultServerURL = "https://platform.ringcentral.com"

// SubscriptionTTL is the longest webhook subscription lifetime, in seconds.
const SubscriptionTTL = 604799

// APIError is a non-2xx platform response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ringcentral %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the RingCentral team-messaging and platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client that authenticates every request with a bearer
// token from ts.
func NewClient(serverURL string, ts oauth2.TokenSource, logger *zap.Logger) *Client {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
		logger: logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			return ErrNotAuthorized
		}
		return fmt.Errorf("ringcentral %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// PostOptions are optional fields of a new post.
type PostOptions struct {
	ParentID  string
	QuoteOfID string
	Mentions  []models.Mention
}

type postBody struct {
	Text      string        `json:"text"`
	ParentID  string        `json:"parentId,omitempty"`
	QuoteOfID string        `json:"quoteOfId,omitempty"`
	Mentions  []mentionBody `json:"mentions,omitempty"`
}

type mentionBody struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// PostText posts text into a chat.
func (c *Client) PostText(ctx context.Context, chatID, text string, opts PostOptions) error {
	body := postBody{Text: text, ParentID: opts.ParentID, QuoteOfID: opts.QuoteOfID}
	for _, m := range opts.Mentions {
		body.Mentions = append(body.Mentions, mentionBody{ID: m.ID, Type: m.Type})
	}

	path := "/team-messaging/v1/chats/" + url.PathEscape(chatID) + "/posts"
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return err
	}

	c.logger.Debug("Posted message", zap.String("chat_id", chatID), zap.Int("length", len(text)))
	return nil
}

// PostAdaptiveCard posts an adaptive card into a chat.
func (c *Client) PostAdaptiveCard(ctx context.Context, chatID string, card map[string]any) error {
	path := "/team-messaging/v1/chats/" + url.PathEscape(chatID) + "/adaptive-cards"
	return c.do(ctx, http.MethodPost, path, nil, card, nil)
}

// Person is a team-messaging user.
type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName picks the best human-readable name of the person.
func (p Person) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if full := strings.TrimSpace(p.FirstName + " " + p.LastName); full != "" {
		return full
	}
	return p.Email
}

// GetPerson looks a person up by id, falling back to the legacy glip endpoint.
func (c *Client) GetPerson(ctx context.Context, personID string) (*Person, error) {
	var p Person
	err := c.do(ctx, http.MethodGet, "/team-messaging/v1/persons/"+url.PathEscape(personID), nil, nil, &p)
	if err == nil && p.DisplayName() != "" {
		return &p, nil
	}
	if errors.Is(err, ErrNotAuthorized) {
		return nil, err
	}

	var legacy Person
	if lerr := c.do(ctx, http.MethodGet, "/glip/persons/"+url.PathEscape(personID), nil, nil, &legacy); lerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, lerr
	}
	return &legacy, nil
}

// CurrentPerson returns the bot's own team-messaging identity.
func (c *Client) CurrentPerson(ctx context.Context) (*Person, error) {
	var p Person
	if err := c.do(ctx, http.MethodGet, "/team-messaging/v1/persons/~", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Conversation is a chat with its member ids.
type Conversation struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Members []struct {
		ID string `json:"id"`
	} `json:"members"`
}

func (c *Client) GetConversation(ctx context.Context, chatID string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/team-messaging/v1/conversations/"+url.PathEscape(chatID), nil, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversationMembers returns the member person ids of a chat.
func (c *Client) GetConversationMembers(ctx context.Context, chatID string) ([]string, error) {
	conv, err := c.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Chat is an entry of the chat list.
type Chat struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// ListChats returns every chat the bot belongs to, following page tokens.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var out []Chat
	pageToken := ""
	for {
		q := url.Values{"recordCount": {"200"}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page struct {
			Records    []Chat `json:"records"`
			Navigation struct {
				NextPageToken string `json:"nextPageToken"`
			} `json:"navigation"`
		}
		if err := c.do(ctx, http.MethodGet, "/team-messaging/v1/chats", q, nil, &page); err != nil {
			return nil, err
		}

		out = append(out, page.Records...)
		if page.Navigation.NextPageToken == "" || page.Navigation.NextPageToken == pageToken {
			return out, nil
		}
		pageToken = page.Navigation.NextPageToken
	}
}

// Extension is the platform (telephony) identity of the bot.
type Extension struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (e Extension) IDString() string {
	return strconv.FormatInt(e.ID, 10)
}

func (c *Client) CurrentExtension(ctx context.Context) (*Extension, error) {
	var ext Extension
	if err := c.do(ctx, http.MethodGet, "/restapi/v1.0/account/~/extension/~", nil, nil, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// Subscription is a created webhook subscription.
type Subscription struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ExpiresIn int    `json:"expiresIn"`
}

// SubscriptionEventFilters are the events the bot listens to.
var SubscriptionEventFilters = []string{
	"/team-messaging/v1/posts",
	"/team-messaging/v1/chats",
	"/restapi/v1.0/account/~/extension/~",
	"/restapi/v1.0/subscription/~?threshold=60&interval=15",
}

// CreateSubscription registers webhookURL for post, chat and lifecycle events.
func (c *Client) CreateSubscription(ctx context.Context, webhookURL string) (*Subscription, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	body := map[string]any{
		"eventFilters": SubscriptionEventFilters,
		"deliveryMode": map[string]any{
			"transportType": "WebHook",
			"address":       webhookURL,
		},
		"expiresIn": SubscriptionTTL,
	}

	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/restapi/v1.0/account/~/extension/~/subscription", nil, body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// EnsureSubscription checks the token identity and creates the webhook subscription.
func (c *Client) EnsureSubscription(ctx context.Context, webhookURL string) (*Subscription, error) {
	ext, err := c.CurrentExtension(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot extension: %w", err)
	}
	c.logger.Info("Subscribing as extension",
		zap.String("extension_id", ext.IDString()),
		zap.String("type", ext.Type))

	sub, err := c.CreateSubscription(ctx, webhookURL)
	if err != nil {
		c.logger.Error("Subscription failed", zap.Error(err))
		return nil, err
	}

	c.logger.Info("Webhook subscription created", zap.String("subscription_id", sub.ID))
	return sub, nil
}
