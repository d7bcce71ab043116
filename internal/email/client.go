package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark API endpoint (used in tests).
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

// NewClient creates an email client. baseURL is the public base URL of this
// service, used to build unsubscribe links.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      "https://api.postmarkapp.com/email",
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendReminder delivers one reminder email. The unsubscribe token links the
// recipient to their suppression record; every reminder email carries the
// opt-out link in its footer.
func (c *Client) SendReminder(to, title, message, unsubscribeToken string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	unsubscribeURL := fmt.Sprintf("%s/unsubscribe/%s", c.baseURL, unsubscribeToken)
	textBody := fmt.Sprintf("%s\n\n%s\n\nTo stop receiving reminder emails, visit:\n%s", title, message, unsubscribeURL)
	htmlBody := fmt.Sprintf(
		`<h2>%s</h2><p>%s</p><hr><p style="font-size:small"><a href="%s">Unsubscribe from reminder emails</a></p>`,
		html.EscapeString(title), html.EscapeString(message), unsubscribeURL,
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       to,
		Subject:  title,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
