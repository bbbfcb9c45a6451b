package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"

	"github.com/numgate/numgate/internal/identity"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/util"
)

type fakeAccounts struct {
	byKey map[string]*model.Account
	byUID map[string]*model.Account
}

func (f *fakeAccounts) GetByAPIKey(_ context.Context, key string) (*model.Account, error) {
	return f.byKey[key], nil
}
func (f *fakeAccounts) GetByIdentityUID(_ context.Context, uid string) (*model.Account, error) {
	return f.byUID[uid], nil
}
func (f *fakeAccounts) GetByID(context.Context, int64) (*model.Account, error) { return nil, nil }
func (f *fakeAccounts) Insert(context.Context, *model.Account) (int64, error)  { return 0, nil }
func (f *fakeAccounts) RotateAPIKey(context.Context, *sqlx.Tx, int64, string) error {
	return nil
}
func (f *fakeAccounts) SetReferrerIfEmpty(context.Context, *sqlx.Tx, int64, string) error {
	return nil
}
func (f *fakeAccounts) List(context.Context, int, int) ([]model.Account, error) { return nil, nil }
func (f *fakeAccounts) Totals(context.Context) (int64, int64, error)            { return 0, 0, nil }
func (f *fakeAccounts) Purge(context.Context, *sqlx.Tx, int64) error            { return nil }

type fakeVerifier struct {
	subs map[string]identity.Subject
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (identity.Subject, error) {
	s, ok := f.subs[token]
	if !ok {
		return identity.Subject{}, identity.ErrUnauthenticated
	}
	return s, nil
}

func runAuth(t *testing.T, accounts *fakeAccounts, verifier *fakeVerifier, setup func(*http.Request)) (*httptest.ResponseRecorder, string) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/getBalance", nil)
	setup(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var method string
	handler := Auth(accounts, verifier)(func(c echo.Context) error {
		method = AuthMethodFromCtx(c)
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec, method
}

func TestAuth(t *testing.T) {
	goodKey := util.NewAPIKey()
	active := &model.Account{ID: 1, Status: "active"}
	suspended := &model.Account{ID: 2, Status: "suspended"}

	accounts := &fakeAccounts{
		byKey: map[string]*model.Account{goodKey: active},
		byUID: map[string]*model.Account{
			"uid-1": active,
			"uid-2": suspended,
		},
	}
	verifier := &fakeVerifier{subs: map[string]identity.Subject{
		"tok-good":      {UID: "uid-1"},
		"tok-suspended": {UID: "uid-2"},
		"tok-unknown":   {UID: "uid-nope"},
	}}

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantMethod string
	}{
		{
			name:       "api key via query param",
			setup:      func(r *http.Request) { r.URL.RawQuery = "api_key=" + goodKey },
			wantStatus: http.StatusOK,
			wantMethod: AuthMethodAPIKey,
		},
		{
			name:       "api key via header",
			setup:      func(r *http.Request) { r.Header.Set("X-API-Key", goodKey) },
			wantStatus: http.StatusOK,
			wantMethod: AuthMethodAPIKey,
		},
		{
			name: "api key wins over bearer",
			setup: func(r *http.Request) {
				r.Header.Set("X-API-Key", goodKey)
				r.Header.Set("Authorization", "Bearer tok-good")
			},
			wantStatus: http.StatusOK,
			wantMethod: AuthMethodAPIKey,
		},
		{
			name:       "malformed key rejected before lookup",
			setup:      func(r *http.Request) { r.Header.Set("X-API-Key", "not-a-key") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "well formed but unknown key",
			setup:      func(r *http.Request) { r.Header.Set("X-API-Key", util.NewAPIKey()) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-good") },
			wantStatus: http.StatusOK,
			wantMethod: AuthMethodBearer,
		},
		{
			name:       "bad bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-bad") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verified token without account",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-unknown") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "suspended account rejected",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok-suspended") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no credentials",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, method := runAuth(t, accounts, verifier, tt.setup)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && method != tt.wantMethod {
				t.Fatalf("auth method = %q, want %q", method, tt.wantMethod)
			}
		})
	}
}

func TestRequireBearer(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/partner/info", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ctxAuthMethod, AuthMethodAPIKey)

	handler := RequireBearer()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		acct       *model.Account
		wantStatus int
	}{
		{"admin passes", &model.Account{ID: 1, Role: model.RoleAdmin}, http.StatusOK},
		{"user refused", &model.Account{ID: 2, Role: model.RoleUser}, http.StatusForbidden},
		{"no account refused", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tt.acct != nil {
				c.Set(ctxAccount, tt.acct)
			}

			handler := RequireAdmin()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
			if err := handler(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
