package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
)

func webhookPayload(from, text string) []byte {
	return []byte(fmt.Sprintf(`{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": %q, "type": "text", "text": {"body": %q}}
		]}}]}]
	}`, from, text))
}

func TestWhatsAppAPI_verify(t *testing.T) {
	env := newTestServer(t)

	path := func(mode, token, challenge string) string {
		v := url.Values{}
		v.Set("hub.mode", mode)
		v.Set("hub.verify_token", token)
		v.Set("hub.challenge", challenge)
		return "/v1/whatsapp/webhook?" + v.Encode()
	}

	// Meta handshake echoes the challenge
	req, rec := newRequest(http.MethodGet, path("subscribe", "verify-secret", "12345"))
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "12345", rec.Body.String())

	// wrong token
	req, rec = newRequest(http.MethodGet, path("subscribe", "wrong", "12345"))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// wrong mode
	req, rec = newRequest(http.MethodGet, path("unsubscribe", "verify-secret", "12345"))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestWhatsAppAPI_parentQuestion(t *testing.T) {
	env := newTestServer(t)

	usr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	createStudent(t, env.stdSvc, usr.ID, "Grade 8", func(ns *student.NewStudent) {
		ns.ParentPhone = "254700000001"
	})

	req, rec := newRequest(http.MethodPost, "/v1/whatsapp/webhook", webhookPayload("254700000001", "How is my child doing in school?"))
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, *env.waSent, 1)
	sent := (*env.waSent)[0]
	assert.Contains(t, sent, `"to":"254700000001"`)
	assert.Contains(t, sent, "Here is a detailed explanation.")
}

func TestWhatsAppAPI_unknownSender(t *testing.T) {
	env := newTestServer(t)

	req, rec := newRequest(http.MethodPost, "/v1/whatsapp/webhook", webhookPayload("254799999999", "Hello?"))
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, *env.waSent, 1)
	assert.Contains(t, (*env.waSent)[0], "not linked to any student profile")
}

func TestWhatsAppAPI_nonTextIgnored(t *testing.T) {
	env := newTestServer(t)

	payload := []byte(`{"entry": [{"changes": [{"value": {"messages": [
		{"from": "254700000001", "type": "image"}
	]}}]}]}`)
	req, rec := newRequest(http.MethodPost, "/v1/whatsapp/webhook", payload)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, *env.waSent)
}
