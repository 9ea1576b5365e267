package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "cardroom/internal/application"
	"cardroom/internal/domain/entity"
	"cardroom/internal/domain/repository"
	handlers "cardroom/internal/interface/http"
	"cardroom/internal/interface/middleware"
	"cardroom/pkg/helpers"
)

// memRepo is an in-memory UserRepository with the same uniqueness semantics
// as the real store.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User // keyed by email
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*entity.User)}
}

func (r *memRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.Email] = &cp
	return nil
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, existing := range r.users {
		if existing.ID == u.ID {
			cp := *u
			r.users[email] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

type envelope struct {
	Status  int            `json:"status"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	jwt := helpers.NewJWTManager("handler-test-secret", 7*24*time.Hour)
	logger := logrus.New()
	svc := userapp.NewService(newMemRepo(), jwt, nil, "", rdb, logger, nil, "", nil, false)
	h := handlers.NewAccountHandler(svc, logger, "", true)

	r := gin.New()
	user := r.Group("/user")
	user.POST("/signup", h.Signup)
	user.POST("/login", h.Login)
	user.POST("/logout", h.Logout)
	auth := user.Group("/")
	auth.Use(middleware.Session(rdb, jwt))
	auth.GET("/me", h.Me)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == helpers.SessionCookie {
			return c
		}
	}
	return nil
}

func signupBody(name, email, password string) map[string]string {
	return map[string]string{"name": name, "email": email, "password": password}
}

func TestSignupEndpoint(t *testing.T) {
	t.Run("registers on an empty store", func(t *testing.T) {
		r := newTestRouter(t)
		w, env := doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "Registered successfully!", env.Message)
		assert.Equal(t, "Alice", env.Data["name"])
		assert.Equal(t, "a@b.com", env.Data["email"])
		assert.Len(t, env.Data["user_id"], helpers.UserIDLength)
		assert.NotEmpty(t, env.Data["token"])

		c := sessionCookie(t, w)
		require.NotNil(t, c, "session cookie must be set")
		assert.Equal(t, env.Data["token"], c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
	})

	t.Run("second signup with the same email fails", func(t *testing.T) {
		r := newTestRouter(t)
		_, first := doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))
		require.True(t, first.Success)

		w, env := doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice2", "a@b.com", "longpass2"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Email is already in use", env.Message)
	})

	t.Run("validation messages", func(t *testing.T) {
		r := newTestRouter(t)
		tests := []struct {
			name string
			body map[string]string
			want string
		}{
			{"missing fields", signupBody("", "a@b.com", "longpass1"), "All Fields are required"},
			{"invalid email", signupBody("Alice", "not-an-email", "longpass1"), "Not a valid Email"},
			{"weak password", signupBody("Alice", "a@b.com", "short"), "Password must be 8 characters long"},
			{"weak multibyte password", signupBody("Alice", "a@b.com", "ñññññññ"), "Password must be 8 characters long"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w, env := doJSON(t, r, http.MethodPost, "/user/signup", tt.body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, tt.want, env.Message)
			})
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		r := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/user/signup", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	creds := map[string]string{"email": "a@b.com", "password": "longpass1"}

	t.Run("returns name, email and token", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))

		w, env := doJSON(t, r, http.MethodPost, "/user/login", creds)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "logged in successfully!", env.Message)
		assert.Equal(t, "Alice", env.Data["name"])
		assert.Equal(t, "a@b.com", env.Data["email"])
		assert.NotEmpty(t, env.Data["token"])
		assert.NotContains(t, env.Data, "user_id")

		require.NotNil(t, sessionCookie(t, w))
	})

	t.Run("wrong password", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))

		w, env := doJSON(t, r, http.MethodPost, "/user/login", map[string]string{"email": "a@b.com", "password": "wrongpass1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Wrong Password", env.Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		r := newTestRouter(t)
		w, env := doJSON(t, r, http.MethodPost, "/user/login", creds)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "didn't find this email", env.Message)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Run("clears the session cookie on success", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))

		w, env := doJSON(t, r, http.MethodPost, "/user/logout", map[string]string{"email": "a@b.com", "password": "longpass1"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
		assert.Empty(t, env.Data)

		c := sessionCookie(t, w)
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	})

	t.Run("requires the password to match", func(t *testing.T) {
		r := newTestRouter(t)
		doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))

		w, env := doJSON(t, r, http.MethodPost, "/user/logout", map[string]string{"email": "a@b.com", "password": "wrongpass1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Wrong Password", env.Message)
	})
}

func TestSessionMiddleware(t *testing.T) {
	t.Run("profile requires a session cookie", func(t *testing.T) {
		r := newTestRouter(t)
		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("profile with a live session", func(t *testing.T) {
		r := newTestRouter(t)
		w, _ := doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))
		c := sessionCookie(t, w)
		require.NotNil(t, c)

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req.AddCookie(c)
		got := httptest.NewRecorder()
		r.ServeHTTP(got, req)

		require.Equal(t, http.StatusOK, got.Code)
		var env envelope
		require.NoError(t, json.Unmarshal(got.Body.Bytes(), &env))
		assert.Equal(t, "a@b.com", env.Data["email"])
		assert.EqualValues(t, entity.StartingChips, env.Data["chips"])
	})

	t.Run("session gone after logout", func(t *testing.T) {
		r := newTestRouter(t)
		w, _ := doJSON(t, r, http.MethodPost, "/user/signup", signupBody("Alice", "a@b.com", "longpass1"))
		c := sessionCookie(t, w)
		require.NotNil(t, c)

		doJSON(t, r, http.MethodPost, "/user/logout", map[string]string{"email": "a@b.com", "password": "longpass1"})

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req.AddCookie(c)
		got := httptest.NewRecorder()
		r.ServeHTTP(got, req)
		assert.Equal(t, http.StatusUnauthorized, got.Code)
	})
}
