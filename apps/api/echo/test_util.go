package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
	emailsvc "github.com/kymoni/elimu/services/email"
	logsvc "github.com/kymoni/elimu/services/logger"
	whatsappsvc "github.com/kymoni/elimu/services/whatsapp"
	dummydb "github.com/kymoni/elimu/storage/database/dummy"
)

var (
	ctxBG = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func testConfig() *core.Config {
	conf := &core.Config{
		AppName:   "Elimu",
		Env:       "TEST",
		Debug:     false,
		TestMode:  true,
		SecretKey: "secret",
	}
	conf.DefaultFromEmail.Name = conf.AppName
	conf.DefaultFromEmail.Address = "noreply@localhost"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.WhatsApp.VerifyToken = "verify-secret"
	conf.WhatsApp.PhoneNumberID = "12345"
	return conf
}

// aiStub stands in for the Gemini service.
type aiStub struct {
	mu         sync.Mutex
	generated  string
	intent     string
	prompts    []string
	questions  []assignment.Question
	writeScore float64
	writeFB    string
	fail       bool
}

func newAIStub() *aiStub {
	return &aiStub{
		generated:  "Here is a detailed explanation.",
		intent:     chat.IntentAskQuestion,
		writeScore: 8,
		writeFB:    "Well reasoned.",
		questions: []assignment.Question{
			{Type: assignment.TypeMCQ, Text: "What is 2+2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
			{Type: assignment.TypeWritten, Text: "Explain fractions."},
		},
	}
}

func (s *aiStub) GenerateText(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", assert.AnError
	}
	return s.generated, nil
}

func (s *aiStub) ClassifyIntent(context.Context, string, []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent, nil
}

func (s *aiStub) EmbedText(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *aiStub) GradeWritten(context.Context, string, string, string) (float64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, "", assert.AnError
	}
	return s.writeScore, s.writeFB, nil
}

func (s *aiStub) GenerateQuestions(context.Context, assignment.GenerateParams, assignment.Analysis) ([]assignment.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, assert.AnError
	}
	return s.questions, nil
}

// retrieverStub is an in-memory knowledge base.
type retrieverStub struct {
	mu   sync.Mutex
	docs []chat.Document
}

func (s *retrieverStub) AddDocument(_ context.Context, doc chat.Document, _ []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

func (s *retrieverStub) Query(_ context.Context, _ []float32, subject string, limit int) ([]chat.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []chat.Document
	for _, doc := range s.docs {
		if subject == "" || doc.Subject == subject {
			docs = append(docs, doc)
		}
		if len(docs) == limit {
			break
		}
	}
	return docs, nil
}

// recognizerStub identifies whatever matches it is primed with.
type recognizerStub struct {
	mu      sync.Mutex
	matches []attendance.Match
}

func (s *recognizerStub) Identify(context.Context, string) ([]attendance.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches, nil
}

func (s *recognizerStub) prime(matches ...attendance.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = matches
}

type mediaStub struct{}

func (mediaStub) UploadImage(_ context.Context, _ io.Reader, filename string) (string, error) {
	return "https://cdn.test/" + filename, nil
}

type faceIndexerStub struct{}

func (faceIndexerStub) RegisterFace(context.Context, string, string) error { return nil }

// testEnv bundles a fully wired test server backed by in-memory storage and
// stubbed external collaborators.
type testEnv struct {
	server *Server
	conf   *core.Config

	usrSvc user.Service
	stdSvc student.Service
	asgSvc assignment.Service
	attSvc attendance.Service

	ai         *aiStub
	recognizer *recognizerStub
	retriever  *retrieverStub

	waSent *[]string // bodies posted to the stub Graph API
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	conf := testConfig()
	logger := logsvc.NewTestLogger()
	core.ParseEmailTemplates(conf, logger)

	db, err := dummydb.Open()
	require.NoError(t, err)

	ai := newAIStub()
	recognizer := &recognizerStub{}
	retriever := &retrieverStub{}
	media := mediaStub{}

	usrSvc := user.NewService(dummydb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)
	stdSvc := student.NewService(dummydb.NewStudentRepository(db), media, faceIndexerStub{})
	asgSvc := assignment.NewService(dummydb.NewAssignmentRepository(db), ai, ai, logger)
	attSvc := attendance.NewService(dummydb.NewAttendanceRepository(db), stdSvc, media, recognizer, logger)
	chatSvc := chat.NewService(dummydb.NewChatRepository(db), stdSvc, asgSvc, attSvc, ai, ai, retriever, logger)

	// stub Graph API; records message bodies
	sent := new([]string)
	var mu sync.Mutex
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		mu.Lock()
		*sent = append(*sent, buf.String())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(graph.Close)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		StudentSvc:    stdSvc,
		AssignmentSvc: asgSvc,
		AttendanceSvc: attSvc,
		ChatSvc:       chatSvc,
		WhatsApp:      whatsappsvc.NewClientMock(conf, graph.URL),
		Validate:      validate,
		Translator:    translator,
	})

	return &testEnv{
		server:     server,
		conf:       conf,
		usrSvc:     usrSvc,
		stdSvc:     stdSvc,
		asgSvc:     asgSvc,
		attSvc:     attSvc,
		ai:         ai,
		recognizer: recognizer,
		retriever:  retriever,
		waSent:     sent,
	}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// Fixtures

func createUser(t *testing.T, svc user.Service, name, uname, email, pwd string, roles []string) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	require.NoError(t, err)
	return usr
}

func createStudent(t *testing.T, svc student.Service, userID, gradeLevel string, opts ...func(*student.NewStudent)) student.Student {
	t.Helper()
	ns := student.NewStudent{UserID: userID, GradeLevel: gradeLevel, Subjects: []string{"mathematics"}}
	for _, opt := range opts {
		opt(&ns)
	}
	std, err := svc.Enroll(context.Background(), ns)
	require.NoError(t, err)
	return std
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := generateToken(conf, getUserClaims(conf, usr))
	require.NoError(t, err)
	return token
}

func bytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

// Request helpers

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request with one file part and any
// extra form fields.
func newUploadRequest(
	t *testing.T,
	method, path, token, fileField, filename string,
	content []byte,
	fields map[string]string,
) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
