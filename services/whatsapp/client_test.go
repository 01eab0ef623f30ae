package whatsappsvc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core"
)

func TestVerifyWebhook(t *testing.T) {
	conf := &core.Config{}
	conf.WhatsApp.VerifyToken = "sekrit"
	c := NewClient(conf)

	assert.True(t, c.VerifyWebhook("subscribe", "sekrit"))
	assert.False(t, c.VerifyWebhook("subscribe", "wrong"))
	assert.False(t, c.VerifyWebhook("subscribe", ""))
	assert.False(t, c.VerifyWebhook("unsubscribe", "sekrit"))
}

func TestWebhookPayloadMessages(t *testing.T) {
	raw := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [
						{"from": "254700111222", "type": "text", "text": {"body": "How is my child doing?"}},
						{"from": "254700111222", "type": "image"}
					]
				}
			}]
		}]
	}`
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	msgs := payload.Messages()
	require.Len(t, msgs, 1) // non-text messages are dropped
	assert.Equal(t, "254700111222", msgs[0].From)
	assert.Equal(t, "How is my child doing?", msgs[0].Text.Body)
}
