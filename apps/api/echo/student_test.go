package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
)

func TestStudentAPI_enroll(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "student1@test.sch", "LePassword", []string{user.RoleStudent})
	token := getToken(t, env.conf, teacher)

	body := marchallObj(t, student.NewStudent{
		UserID:      stdUsr.ID,
		GradeLevel:  "Grade 8",
		Subjects:    []string{"mathematics", "physics"},
		ParentPhone: "254700000001",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/students", token, body)
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var std student.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &std))
	assert.Equal(t, stdUsr.ID, std.UserID)
	assert.NotEmpty(t, std.Code)
	assert.Equal(t, student.StyleVisual, std.LearningStyle) // default

	// one profile per user
	req, rec = newAuthRequest(http.MethodPost, "/v1/students", token, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// students cannot enroll others
	stdToken := getToken(t, env.conf, stdUsr)
	req, rec = newAuthRequest(http.MethodPost, "/v1/students", stdToken, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestStudentAPI_ownProfile(t *testing.T) {
	env := newTestServer(t)

	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "student1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	token := getToken(t, env.conf, stdUsr)

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/me", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got student.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, std.ID, got.ID)

	// update own preferences
	body := marchallObj(t, student.UpdatePreferences{
		LearningStyle: student.StyleAuditory,
		Interests:     []string{"football", "music"},
	})
	req, rec = newAuthRequest(http.MethodPut, "/v1/students/me/preferences", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, student.StyleAuditory, got.LearningStyle)
	assert.Equal(t, []string{"football", "music"}, got.Interests)

	// bogus learning style is rejected
	req, rec = newAuthRequest(http.MethodPut, "/v1/students/me/preferences", token, []byte(`{"learning_style":"osmosis"}`))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// no profile enrolled
	orphan := createUser(t, env.usrSvc, "No Profile", "noprofile", "noprofile@test.sch", "LePassword", []string{user.RoleStudent})
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/me", getToken(t, env.conf, orphan))
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestStudentAPI_query(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	usr1 := createUser(t, env.usrSvc, "A", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	usr2 := createUser(t, env.usrSvc, "B", "student2", "s2@test.sch", "LePassword", []string{user.RoleStudent})
	std1 := createStudent(t, env.stdSvc, usr1.ID, "Grade 8")
	std2 := createStudent(t, env.stdSvc, usr2.ID, "Grade 7")
	token := getToken(t, env.conf, teacher)

	tests := []httpTest{
		{name: "all", path: "/v1/students", wantData: marchallList(t, std1, std2)},
		{name: "by grade", path: "/v1/students?grade_level=Grade+7", wantData: marchallList(t, std2)},
		{name: "by code", path: "/v1/students?search=" + std1.Code, wantData: marchallList(t, std1)},
		{name: "unknown grade", path: "/v1/students?grade_level=Grade+12", wantData: marchallList(t)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = token
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestStudentAPI_photoAndFeedback(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	usr := createUser(t, env.usrSvc, "Student", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, usr.ID, "Grade 8")
	token := getToken(t, env.conf, teacher)

	req, rec := newUploadRequest(t, http.MethodPost, "/v1/students/"+std.ID+"/photo", token,
		"photo", "portrait.jpg", []byte("fake-jpeg-bytes"), nil)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got student.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "https://cdn.test/portrait.jpg", got.PhotoURL)
	assert.True(t, got.FaceEnrolled)

	// missing file part
	req, rec = newAuthRequest(http.MethodPost, "/v1/students/"+std.ID+"/photo", token)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// feedback lands in the profile history
	body := marchallObj(t, student.Feedback{Subject: "mathematics", Topic: "fractions", Feedback: "Needs more practice"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/students/"+std.ID+"/feedback", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	saved, err := env.stdSvc.GetByID(ctxBG, std.ID)
	require.NoError(t, err)
	require.Len(t, saved.FeedbackHistory, 1)
	assert.Equal(t, "Needs more practice", saved.FeedbackHistory[0].Feedback)
	assert.False(t, saved.FeedbackHistory[0].Date.IsZero())
}

func TestStudentAPI_ownProgress(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	stdUsr := createUser(t, env.usrSvc, "Student", "student1", "student1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, stdUsr.ID, "Grade 8")
	token := getToken(t, env.conf, stdUsr)

	// nothing submitted yet
	req, rec := newAuthRequest(http.MethodGet, "/v1/students/me/progress", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, "[]", rec.Body.String())

	asg, err := env.asgSvc.Create(ctxBG, teacher.ID, newMathAssignment(time.Now().Add(48*time.Hour).UTC()))
	require.NoError(t, err)
	_, err = env.asgSvc.Submit(ctxBG, std.ID, assignment.NewSubmission{
		AssignmentID: asg.ID,
		Answers:      []string{"3/4", "Find a common denominator first."},
	})
	require.NoError(t, err)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/me/progress", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var progress []assignment.SubjectProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.Len(t, progress, 1)
	assert.Equal(t, "mathematics", progress[0].Subject)
	assert.Equal(t, 1, progress[0].Submissions)
	assert.Greater(t, progress[0].AverageScore, 0.0)

	// staff have no student profile to aggregate
	teacherToken := getToken(t, env.conf, teacher)
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/me/progress", teacherToken)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}
