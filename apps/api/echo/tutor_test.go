package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/user"
)

func TestTutorAPI_chat(t *testing.T) {
	env := newTestServer(t)

	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	token := getToken(t, env.conf, stdUsr)

	// greetings are answered without the LLM
	body := marchallObj(t, chat.Ask{Question: "Hello!"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/tutor/chat", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, chat.IntentGreeting, reply.Intent)
	assert.NotEmpty(t, reply.Answer)

	// subject questions go through generation
	body = marchallObj(t, chat.Ask{Question: "Explain photosynthesis please"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tutor/chat", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, chat.IntentAskQuestion, reply.Intent)
	assert.Equal(t, "biology", reply.Subject)
	assert.Equal(t, "Here is a detailed explanation.", reply.Answer)

	// empty question is rejected
	req, rec = newAuthRequest(http.MethodPost, "/v1/tutor/chat", token, []byte(`{"question":""}`))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// teachers have no tutor
	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tutor/chat", getToken(t, env.conf, teacher), body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestTutorAPI_history(t *testing.T) {
	env := newTestServer(t)

	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	token := getToken(t, env.conf, stdUsr)

	questions := []string{"What is algebra?", "Explain gravity", "How do cells divide?"}
	for _, q := range questions {
		body := marchallObj(t, chat.Ask{Question: q})
		req, rec := newAuthRequest(http.MethodPost, "/v1/tutor/chat", token, body)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/tutor/history", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var interactions []chat.Interaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interactions))
	require.Len(t, interactions, 3)
	// most recent first
	assert.Equal(t, "How do cells divide?", interactions[0].Question)

	// limit applies
	req, rec = newAuthRequest(http.MethodGet, "/v1/tutor/history?limit=1", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interactions))
	assert.Len(t, interactions, 1)
}

func TestTutorAPI_addDocument(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	token := getToken(t, env.conf, teacher)

	body := marchallObj(t, chat.NewDocument{
		Subject:    "Mathematics",
		Topic:      "algebra",
		Content:    "Algebra is the study of symbols and the rules for manipulating them.",
		GradeLevel: "Grade 8",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/tutor/documents", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc chat.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "mathematics", doc.Subject) // normalized

	env.retriever.mu.Lock()
	stored := len(env.retriever.docs)
	env.retriever.mu.Unlock()
	assert.Equal(t, 1, stored)

	// students cannot curate the knowledge base
	req, rec = newAuthRequest(http.MethodPost, "/v1/tutor/documents", getToken(t, env.conf, stdUsr), body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// content is required
	req, rec = newAuthRequest(http.MethodPost, "/v1/tutor/documents", token, []byte(`{"subject":"mathematics","topic":"algebra"}`))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestTutorAPI_retrievalFeedsPrompt(t *testing.T) {
	env := newTestServer(t)

	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	token := getToken(t, env.conf, stdUsr)

	require.NoError(t, env.retriever.AddDocument(ctxBG, chat.Document{
		ID: "doc-1", Subject: "physics", Topic: "gravity",
		Content: "Gravity pulls objects toward each other.",
	}, nil))

	body := marchallObj(t, chat.Ask{Question: "Explain gravity to me"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/tutor/chat", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "physics", reply.Subject)
	assert.True(t, strings.HasPrefix(reply.Answer, "Here is"))
}
