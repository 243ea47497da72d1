package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-system/internal/config"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

type memRepo struct {
	mu       sync.Mutex
	users    map[string]*models.User
	sessions map[string]session
}

type session struct {
	userID    string
	expiresAt time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]*models.User{}, sessions: map[string]session{}}
}

func (m *memRepo) CreateUser(_ context.Context, u *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return false, nil
	}
	cp := *u
	m.users[u.Username] = &cp
	return true, nil
}

func (m *memRepo) UserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, errNotFound
	}
	return u, nil
}

func (m *memRepo) CreateSession(_ context.Context, token, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = session{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memRepo) UserBySession(_ context.Context, token string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok || !s.expiresAt.After(time.Now()) {
		return nil, errNotFound
	}
	for _, u := range m.users {
		if u.ID == s.userID {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *memRepo) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memRepo) DeleteExpiredSessions(context.Context) (int64, error) { return 0, nil }

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	svc := NewService(repo, time.Hour, logger.NewNop())
	err := svc.EnsureUsers(context.Background(), []config.DemoUser{
		{Username: "waitress1", Password: "password123", FullName: "Maria Lopez", Role: "waitress"},
		{Username: "kitchen1", Password: "password123", FullName: "Kitchen Staff", Role: "kitchen"},
	})
	if err != nil {
		t.Fatalf("EnsureUsers() error = %v", err)
	}
	return svc, repo
}

func TestEnsureUsers_Idempotent(t *testing.T) {
	svc, repo := newTestService(t)
	before := repo.users["waitress1"].PasswordHash

	err := svc.EnsureUsers(context.Background(), []config.DemoUser{
		{Username: "waitress1", Password: "other", FullName: "X", Role: "waitress"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if repo.users["waitress1"].PasswordHash != before {
		t.Errorf("existing user was overwritten")
	}

	err = svc.EnsureUsers(context.Background(), []config.DemoUser{{Username: "x", Password: "y", Role: "chef"}})
	if err == nil {
		t.Errorf("expected error for unknown role")
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		req      models.LoginRequest
		wantErr  error
		wantRole models.Role
	}{
		{"valid", models.LoginRequest{Username: "waitress1", Password: "password123"}, nil, models.RoleWaitress},
		{"wrong password", models.LoginRequest{Username: "waitress1", Password: "nope"}, ErrInvalidCredentials, ""},
		{"unknown user", models.LoginRequest{Username: "ghost", Password: "password123"}, ErrInvalidCredentials, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(context.Background(), tt.req, "test")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if resp.Role != tt.wantRole || resp.AccessToken == "" || resp.FullName != "Maria Lopez" {
				t.Errorf("response = %+v", resp)
			}

			user, err := svc.Authenticate(context.Background(), resp.AccessToken)
			if err != nil || user.Username != tt.req.Username {
				t.Errorf("Authenticate() = %v, %v", user, err)
			}
		})
	}

	var verr models.ValidationError
	if _, err := svc.Login(context.Background(), models.LoginRequest{}, "test"); !errors.As(err, &verr) {
		t.Errorf("empty credentials error = %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "kitchen1", Password: "password123"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(context.Background(), resp.AccessToken); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(context.Background(), resp.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("token still valid after logout: %v", err)
	}
}

func TestMiddlewareAndRoles(t *testing.T) {
	svc, _ := newTestService(t)
	log := logger.NewNop()
	h := NewHandler(svc, log)

	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(Middleware(svc, log))
		h.RegisterRoutes(r)
		r.With(RequireRoles(models.RoleKitchen, models.RoleAdministrator)).Get("/kitchen-only", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	login := func(username string) string {
		rec := httptest.NewRecorder()
		body := `{"username":"` + username + `","password":"password123"}`
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp models.LoginResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		return resp.AccessToken
	}

	waitress := login("waitress1")
	kitchen := login("kitchen1")

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"me without token", "/auth/me", "", http.StatusUnauthorized},
		{"me with bad token", "/auth/me", "bogus", http.StatusUnauthorized},
		{"me", "/auth/me", waitress, http.StatusOK},
		{"role allowed", "/kitchen-only", kitchen, http.StatusOK},
		{"role forbidden", "/kitchen-only", waitress, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"waitress1","password":"bad"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}
}
