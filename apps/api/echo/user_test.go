package echoapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/user"
)

func TestUserAPI_login(t *testing.T) {
	env := newTestServer(t)
	usr := createUser(t, env.usrSvc, "Jane Mwangi", "janemwangi", "jane@test.sch", "LePassword", nil)

	inactive := createUser(t, env.usrSvc, "Gone User", "goneuser", "gone@test.sch", "LePassword", nil)
	active := false
	_, err := env.usrSvc.Update(ctxBG, inactive.ID, user.UpdateUser{IsActive: &active})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "valid credentials",
			body:     marchallObj(t, user.LoginRequest{Username: "janemwangi", Password: "LePassword"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, user.LoginRequest{Username: usr.Email, Password: "LePassword"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, user.LoginRequest{Username: "janemwangi", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, user.LoginRequest{Username: "ghost", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, user.LoginRequest{Username: "goneuser", Password: "LePassword"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var res LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.NotEmpty(t, res.Token)
		})
	}
}

func TestUserAPI_register(t *testing.T) {
	env := newTestServer(t)

	// roles are ignored on open signup
	body := marchallObj(t, user.NewUser{
		Name:            "Sneaky Pete",
		Username:        "sneakypete",
		Email:           "pete@test.sch",
		Password:        "LePassword",
		PasswordConfirm: "LePassword",
		Roles:           []string{user.RoleAdminOwner},
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)

	// duplicate email is a validation error
	req, rec = newRequest(http.MethodPost, "/v1/users/register", body)
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestUserAPI_adminEndpoints(t *testing.T) {
	env := newTestServer(t)

	admin := createUser(t, env.usrSvc, "Admin", "theadmin", "admin@test.sch", "LePassword", []string{user.RoleAdmin})
	std := createUser(t, env.usrSvc, "Student", "student1", "student1@test.sch", "LePassword", []string{user.RoleStudent})
	adminToken := getToken(t, env.conf, admin)
	stdToken := getToken(t, env.conf, std)

	tests := []httpTest{
		{
			name:     "query requires token",
			method:   http.MethodGet,
			path:     "/v1/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "query forbidden for students",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    stdToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "query ok for admin",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, std),
		},
		{
			name:     "filter by role",
			method:   http.MethodGet,
			path:     "/v1/users?" + url.Values{"role": {user.RoleStudent}}.Encode(),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, std),
		},
		{
			name:     "roles listing",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Roles),
		},
		{
			name:     "self retrieve ok for student",
			method:   http.MethodGet,
			path:     "/v1/users/" + std.ID,
			token:    stdToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, std),
		},
		{
			name:     "other user hidden from student",
			method:   http.MethodGet,
			path:     "/v1/users/" + admin.ID,
			token:    stdToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserAPI_adminCannotBeOutranked(t *testing.T) {
	env := newTestServer(t)

	admin := createUser(t, env.usrSvc, "Admin", "theadmin", "admin@test.sch", "LePassword", []string{user.RoleAdmin})
	token := getToken(t, env.conf, admin)

	body := marchallObj(t, user.NewUser{
		Name:            "Wannabe Owner",
		Username:        "wannabe1",
		Email:           "wannabe@test.sch",
		Password:        "LePassword",
		PasswordConfirm: "LePassword",
		Roles:           []string{user.RoleAdminOwner},
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/users", token, body)
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), errNoPermsToSetRoles)
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	env := newTestServer(t)

	usr := createUser(t, env.usrSvc, "Jane Mwangi", "janemwangi", "jane@test.sch", "LePassword", nil)
	token := getToken(t, env.conf, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)
}
