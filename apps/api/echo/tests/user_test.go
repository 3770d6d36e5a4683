package tests

import (
	"net/http"
	"testing"

	. "github.com/facillithub-ctrl/FHUBBETA2-sub000/apps/api/echo"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
	testutil "github.com/facillithub-ctrl/FHUBBETA2-sub000/tests"
)

func Test_userApi_login(t *testing.T) {
	db.Reset()

	usr := testutil.CreateUser(t, usrRepo, "Login User", "loginuser", "loginuser@test.local", "s3cr3t!pwd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, usrRepo, "Gone User", "goneuser", "goneuser@test.local", "s3cr3t!pwd", []string{user.RoleStudent}, false)

	authErr := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{name: "empty body", method: http.MethodPost, path: "/v1/users/login", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"})},
		{name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: marchallObj(t, LoginRequest{Username: "nobody", Password: "whatever"}), wantCode: http.StatusBadRequest, wantData: authErr},
		{name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: marchallObj(t, LoginRequest{Username: usr.Username, Password: "nope"}), wantCode: http.StatusBadRequest, wantData: authErr},
		{name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: marchallObj(t, LoginRequest{Username: "goneuser", Password: "s3cr3t!pwd"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid credentials", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: usr.Username, Password: "s3cr3t!pwd"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var resp LoginResponse
		decodeBody(t, rec, &resp)
		if resp.Token == "" {
			t.Error("empty token")
		}

		// the token works against an authenticated route
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+usr.ID, resp.Token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("authed request: code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}
