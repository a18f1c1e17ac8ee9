package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	stdmail "net/mail"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

var oauthScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.labels",
}

var (
	htmlTagRe  = regexp.MustCompile(`<[^>]+>`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// Client fetches and parses messages from the Gmail REST API.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient wraps an authenticated http.Client. baseURL is overridable for
// tests; empty selects the real API endpoint.
func NewClient(hc *http.Client, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &Client{
		http: c,
		log:  log.With().Str("component", "gmail").Logger(),
	}
}

// NewClientFromFiles builds a client from an OAuth2 client-secrets file and
// a stored token file. Token refresh is handled by the oauth2 transport.
func NewClientFromFiles(ctx context.Context, credentialsPath, tokenPath string, log zerolog.Logger) (*Client, error) {
	secrets, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(secrets, oauthScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	return NewClient(conf.Client(ctx, &token), "", log), nil
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
	Headers  []gmailHeader `json:"headers"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

type gmailMessage struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"threadId"`
	Snippet  string    `json:"snippet"`
	LabelIDs []string  `json:"labelIds"`
	Payload  gmailPart `json:"payload"`
}

type gmailListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// FetchMessages lists message ids matching the query, then fetches and
// parses each one. Messages that fail to parse are logged and skipped.
func (c *Client) FetchMessages(ctx context.Context, query string, maxResults int) ([]Message, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("maxResults", strconv.Itoa(maxResults)).
		Get("/users/me/messages")
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list messages: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var list gmailListResponse
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := c.fetchAndParse(ctx, ref.ID)
		if err != nil {
			c.log.Error().Err(err).Str("message_id", ref.ID).Msg("failed to parse message")
			continue
		}
		messages = append(messages, msg)
	}

	c.log.Info().Int("count", len(messages)).Str("query", query).Msg("fetched messages")
	return messages, nil
}

func (c *Client) fetchAndParse(ctx context.Context, id string) (Message, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("format", "full").
		Get("/users/me/messages/" + id)
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Message{}, fmt.Errorf("get message: http %d", resp.StatusCode())
	}

	var raw gmailMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return parseMessage(id, raw), nil
}

func parseMessage(id string, raw gmailMessage) Message {
	headers := make(map[string]string, len(raw.Payload.Headers))
	for _, h := range raw.Payload.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}

	senderName, senderAddr := parseAddress(headers["from"])

	subject := headers["subject"]
	if subject == "" {
		subject = "(No Subject)"
	}

	date, err := stdmail.ParseDate(headers["date"])
	if err != nil {
		date = time.Now()
	}

	threadID := raw.ThreadID
	if threadID == "" {
		threadID = id
	}

	return Message{
		ID:             id,
		ThreadID:       threadID,
		Subject:        subject,
		Sender:         senderAddr,
		SenderName:     senderName,
		Recipients:     parseAddressList(headers["to"]),
		CC:             parseAddressList(headers["cc"]),
		Date:           date,
		Body:           extractBody(raw.Payload),
		Snippet:        raw.Snippet,
		Labels:         raw.LabelIDs,
		IsReply:        strings.HasPrefix(strings.ToLower(subject), "re:"),
		HasAttachments: hasAttachments(raw.Payload),
	}
}

func parseAddress(raw string) (name, addr string) {
	parsed, err := stdmail.ParseAddress(raw)
	if err != nil {
		return "", strings.TrimSpace(raw)
	}
	name = parsed.Name
	addr = parsed.Address
	if name == "" {
		name, _, _ = strings.Cut(addr, "@")
	}
	return name, addr
}

func parseAddressList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := stdmail.ParseAddressList(raw)
	if err != nil {
		// Fall back to naive splitting on malformed header values.
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	out := make([]string, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, a.Address)
	}
	return out
}

// extractBody walks the MIME tree for the first text/plain part, strips
// leftover HTML tags and collapses blank-line runs.
func extractBody(payload gmailPart) string {
	body := findPlainText(payload)
	body = htmlTagRe.ReplaceAllString(body, "")
	body = newlinesRe.ReplaceAllString(body, "\n\n")
	return strings.TrimSpace(body)
}

func findPlainText(part gmailPart) string {
	if part.MimeType == "text/plain" && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if body := findPlainText(child); body != "" {
			return body
		}
	}
	return ""
}

func hasAttachments(part gmailPart) bool {
	if part.Filename != "" {
		return true
	}
	for _, child := range part.Parts {
		if hasAttachments(child) {
			return true
		}
	}
	return false
}
