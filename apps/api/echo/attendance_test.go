package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/user"
)

func TestAttendanceAPI_markFromPhoto(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	usr1 := createUser(t, env.usrSvc, "A", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	usr2 := createUser(t, env.usrSvc, "B", "student2", "s2@test.sch", "LePassword", []string{user.RoleStudent})
	std1 := createStudent(t, env.stdSvc, usr1.ID, "Grade 8")
	std2 := createStudent(t, env.stdSvc, usr2.ID, "Grade 8")
	token := getToken(t, env.conf, teacher)

	env.recognizer.prime(attendance.Match{StudentCode: std1.Code, Confidence: 1})

	req, rec := newUploadRequest(t, http.MethodPost, "/v1/attendance", token,
		"photo", "class.jpg", []byte("fake-jpeg-bytes"), map[string]string{"grade_level": "Grade 8"})
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var s attendance.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, teacher.ID, s.TeacherID)
	require.Len(t, s.Records, 2)

	byStudent := make(map[string]attendance.Record, len(s.Records))
	for _, rec := range s.Records {
		byStudent[rec.StudentID] = rec
	}
	assert.True(t, byStudent[std1.ID].Present)
	assert.False(t, byStudent[std2.ID].Present)

	// missing grade level
	req, rec = newUploadRequest(t, http.MethodPost, "/v1/attendance", token,
		"photo", "class.jpg", []byte("fake-jpeg-bytes"), nil)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// students cannot mark attendance
	stdToken := getToken(t, env.conf, usr1)
	req, rec = newUploadRequest(t, http.MethodPost, "/v1/attendance", stdToken,
		"photo", "class.jpg", []byte("fake-jpeg-bytes"), map[string]string{"grade_level": "Grade 8"})
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestAttendanceAPI_correct(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	usr := createUser(t, env.usrSvc, "A", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, usr.ID, "Grade 8")
	token := getToken(t, env.conf, teacher)

	s, err := env.attSvc.MarkFromPhoto(ctxBG, teacher.ID, "Grade 8", bytesReader("fake"), "class.jpg")
	require.NoError(t, err)
	require.False(t, s.Records[0].Present) // recognizer not primed

	body := marchallObj(t, attendance.Correction{StudentID: std.ID, Present: true})
	req, rec := newAuthRequest(http.MethodPut, "/v1/attendance/"+s.ID+"/corrections", token, body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got attendance.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Records[0].Present)
	assert.Zero(t, got.Records[0].Confidence) // manual marks carry no confidence

	// student outside the session
	body = marchallObj(t, attendance.Correction{StudentID: "unknown", Present: true})
	req, rec = newAuthRequest(http.MethodPut, "/v1/attendance/"+s.ID+"/corrections", token, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// unknown session
	body = marchallObj(t, attendance.Correction{StudentID: std.ID, Present: true})
	req, rec = newAuthRequest(http.MethodPut, "/v1/attendance/000000000000000000000000/corrections", token, body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestAttendanceAPI_summary(t *testing.T) {
	env := newTestServer(t)

	teacher := createUser(t, env.usrSvc, "Teacher", "theteacher", "teacher@test.sch", "LePassword", []string{user.RoleTeacher})
	usr := createUser(t, env.usrSvc, "A", "student1", "s1@test.sch", "LePassword", []string{user.RoleStudent})
	std := createStudent(t, env.stdSvc, usr.ID, "Grade 8")
	token := getToken(t, env.conf, teacher)

	env.recognizer.prime(attendance.Match{StudentCode: std.Code, Confidence: 1})
	_, err := env.attSvc.MarkFromPhoto(ctxBG, teacher.ID, "Grade 8", bytesReader("fake"), "day1.jpg")
	require.NoError(t, err)

	env.recognizer.prime() // absent next time
	s2, err := env.attSvc.MarkFromPhoto(ctxBG, teacher.ID, "Grade 8", bytesReader("fake"), "day2.jpg")
	require.NoError(t, err)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/students/"+std.ID+"/summary", token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary attendance.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 1, summary.PresentCount)
	assert.Equal(t, 50.0, summary.Rate)
	assert.Len(t, summary.RecentAbsences, 1)

	// session listing
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/students/"+std.ID, token)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sessions []attendance.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)

	// retrieve one session
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/"+s2.ID, token)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
