package whatsappsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
)

var graphAPIBase = "https://graph.facebook.com/v18.0"

// Client sends WhatsApp messages through the Meta Graph API.
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	verifyToken   string
	hc            *http.Client
}

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL:       graphAPIBase,
		token:         conf.WhatsApp.Token,
		phoneNumberID: conf.WhatsApp.PhoneNumberID,
		verifyToken:   conf.WhatsApp.VerifyToken,
		hc:            &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientMock returns a Client pointed at a stub Graph API server; for tests.
func NewClientMock(conf *core.Config, baseURL string) *Client {
	c := NewClient(conf)
	c.baseURL = baseURL
	return c
}

// VerifyWebhook checks the token Meta sends in the GET handshake.
func (c *Client) VerifyWebhook(mode, token string) bool {
	return mode == "subscribe" && token != "" && token == c.verifyToken
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(res.Body)
		return errors.Errorf("sending message - status: %d - Body: %s", res.StatusCode, b)
	}
	return nil
}

type (
	// WebhookPayload is the Graph API change notification envelope.
	WebhookPayload struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Messages []IncomingMessage `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}

	IncomingMessage struct {
		From string `json:"from"` // sender phone, digits only
		Type string `json:"type"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	}
)

// Messages flattens all text messages out of a webhook notification.
func (p WebhookPayload) Messages() []IncomingMessage {
	var msgs []IncomingMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type == "text" && msg.Text.Body != "" {
					msgs = append(msgs, msg)
				}
			}
		}
	}
	return msgs
}
