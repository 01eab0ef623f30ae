package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/user"
)

func newMathAssignment(dueDate time.Time) assignment.NewAssignment {
	return assignment.NewAssignment{
		Title:      "Fractions drill",
		Subject:    "mathematics",
		Topic:      "fractions",
		GradeLevel: "Grade 8",
		DueDate:    dueDate,
		Questions: []assignment.NewQuestion{
			{Type: assignment.TypeMCQ, Text: "What is 1/2 + 1/4?", Options: []string{"3/4", "2/6"}, CorrectAnswer: "3/4"},
			{Type: assignment.TypeWritten, Text: "Explain how to add fractions."},
		},
	}
}

func TestAssignmentAPI_createAndVisibility(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	teacherToken := getToken(t, env.conf, teacher)
	stdToken := getToken(t, env.conf, stdUsr)

	body := marchallObj(t, newMathAssignment(time.Now().Add(48*time.Hour).UTC()))
	req, rec := newAuthRequest(http.MethodPost, "/v1/assignments", teacherToken, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var asg assignment.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asg))
	assert.Equal(t, teacher.ID, asg.TeacherID)

	// students cannot create assignments
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments", stdToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// teachers see the answer key
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/"+asg.ID, teacherToken)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got assignment.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "3/4", got.Questions[0].CorrectAnswer)

	// students do not
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/"+asg.ID, stdToken)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = assignment.Assignment{} // correct_answer is omitempty; don't merge into the teacher's copy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.Questions[0].CorrectAnswer)

	// list view strips the key too
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments?subject=mathematics", stdToken)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var asgs []assignment.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asgs))
	require.Len(t, asgs, 1)
	assert.Empty(t, asgs[0].Questions[0].CorrectAnswer)
}

func TestAssignmentAPI_submit(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	stdToken := getToken(t, env.conf, stdUsr)

	asg, err := env.asgSvc.Create(ctxBG, teacher.ID, newMathAssignment(time.Now().Add(48*time.Hour).UTC()))
	require.NoError(t, err)

	// wrong answer count
	body := marchallObj(t, assignment.NewSubmission{Answers: []string{"3/4"}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/"+asg.ID+"/submissions", stdToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// graded on submission: MCQ locally, written by the AI service
	body = marchallObj(t, assignment.NewSubmission{Answers: []string{"3/4", "Find a common denominator first."}})
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments/"+asg.ID+"/submissions", stdToken, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub assignment.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, std.ID, sub.StudentID)
	require.Len(t, sub.Answers, 2)
	require.NotNil(t, sub.Answers[0].AIScore)
	assert.Equal(t, assignment.MaxScore, *sub.Answers[0].AIScore)
	require.NotNil(t, sub.Answers[1].AIScore)
	assert.Equal(t, 8.0, *sub.Answers[1].AIScore)
	assert.Equal(t, "Well reasoned.", sub.Answers[1].AIFeedback)

	// one shot only
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments/"+asg.ID+"/submissions", stdToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "already submitted")

	// past due assignments are closed
	pastAsg, err := env.asgSvc.Create(ctxBG, teacher.ID, newMathAssignment(time.Now().Add(-time.Hour).UTC()))
	require.NoError(t, err)
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments/"+pastAsg.ID+"/submissions", stdToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "past its due date")

	// the student sees their own submissions
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/submissions/me", stdToken)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var subs []assignment.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	assert.Len(t, subs, 1)
}

func TestAssignmentAPI_overrideGrade(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	teacherToken := getToken(t, env.conf, teacher)

	asg, err := env.asgSvc.Create(ctxBG, teacher.ID, newMathAssignment(time.Now().Add(48*time.Hour).UTC()))
	require.NoError(t, err)
	sub, err := env.asgSvc.Submit(ctxBG, std.ID, assignment.NewSubmission{
		AssignmentID: asg.ID,
		Answers:      []string{"2/6", "It just works."},
	})
	require.NoError(t, err)

	body := marchallObj(t, assignment.GradeOverride{AnswerIndex: 1, Score: 4, Feedback: "Show your working."})
	req, rec := newAuthRequest(http.MethodPut, "/v1/assignments/submissions/"+sub.ID+"/grade", teacherToken, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got assignment.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Answers[1].Override)
	assert.Equal(t, 4.0, got.Answers[1].Override.Score)
	assert.Equal(t, teacher.ID, got.Answers[1].Override.TeacherID)

	// the override wins in aggregates
	score, ok := got.Answers[1].EffectiveScore()
	require.True(t, ok)
	assert.Equal(t, 4.0, score)

	// out of range index
	body = marchallObj(t, assignment.GradeOverride{AnswerIndex: 9, Score: 4})
	req, rec = newAuthRequest(http.MethodPut, "/v1/assignments/submissions/"+sub.ID+"/grade", teacherToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestAssignmentAPI_generatePreview(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	token := getToken(t, env.conf, teacher)

	body := marchallObj(t, assignment.GenerateParams{Subject: "mathematics", Topic: "fractions", GradeLevel: "Grade 8"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/generate", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res GeneratePreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Questions, 2)
	assert.Equal(t, assignment.TypeMCQ, res.Questions[0].Type)

	// topic is required
	body = marchallObj(t, assignment.GenerateParams{Subject: "mathematics", GradeLevel: "Grade 8"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments/generate", token, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
