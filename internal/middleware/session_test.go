package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
)

// --- モック定義 ---

type mockUserLoader struct {
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockUserLoader) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, errors.New("session not found or expired")
}

var _ UserLoader = (*mockUserLoader)(nil)

func withUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(ContextWithUser(r.Context(), user))
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	loader := &mockUserLoader{
		getCurrentUserFn: func(_ context.Context, sessionID string) (*model.User, error) {
			if sessionID == "valid-session-id" {
				return &model.User{ID: 123, Email: "a@example.com"}, nil
			}
			return nil, errors.New("not found")
		},
	}

	var captured *model.User
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil || captured.ID != 123 {
		t.Errorf("user = %+v, want ID 123", captured)
	}
}

func TestSessionMiddleware_NoOrInvalidCookie_PassesAnonymous(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"empty cookie", &http.Cookie{Name: SessionCookieName, Value: ""}},
		{"expired session", &http.Cookie{Name: SessionCookieName, Value: "expired"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewSessionMiddleware(&mockUserLoader{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if UserFromContext(r.Context()) != nil {
					t.Error("expected anonymous request")
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Fatal("handler should have been called")
			}
		})
	}
}

func TestRequireUserMiddleware(t *testing.T) {
	handler := NewRequireUserMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/account", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("anonymous: status = %d, location = %q", w.Code, w.Header().Get("Location"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/account", nil), &model.User{ID: 1}))
	if w.Code != http.StatusOK {
		t.Errorf("logged in: status = %d, want 200", w.Code)
	}
}

func TestRequireAdminMiddleware(t *testing.T) {
	handler := NewRequireAdminMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		user       *model.User
		wantStatus int
	}{
		{"anonymous", nil, http.StatusSeeOther},
		{"customer", &model.User{ID: 1, Role: model.RoleCustomer}, http.StatusForbidden},
		{"admin", &model.User{ID: 2, Role: model.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				req = withUser(req, tt.user)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAdminMiddleware_CustomForbiddenHandler(t *testing.T) {
	forbidden := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := NewRequireAdminMiddleware(forbidden)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/admin", nil), &model.User{ID: 1}))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, CookieConfig{Secure: true}, "abc", 3600)
	ClearSessionCookie(w, CookieConfig{Secure: true})

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	set, cleared := cookies[0], cookies[1]
	if set.Value != "abc" || !set.HttpOnly || !set.Secure || set.MaxAge != 3600 {
		t.Errorf("set cookie = %+v", set)
	}
	if cleared.MaxAge >= 0 {
		t.Errorf("cleared cookie MaxAge = %d, want negative", cleared.MaxAge)
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("expected no user ID in empty context")
	}
	id, ok := UserIDFromContext(ContextWithUser(context.Background(), &model.User{ID: 9}))
	if !ok || id != 9 {
		t.Errorf("UserIDFromContext() = %d, %v", id, ok)
	}
}
