package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"cardroom/internal/domain/entity"
	repo "cardroom/internal/domain/repository"
	"cardroom/pkg/helpers"
	"cardroom/pkg/mailer"
)

// Business-rule errors surfaced by the account flows.
var (
	ErrEmailInUse    = errors.New("email already in use")
	ErrEmailNotFound = errors.New("email not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrUserNotFound  = errors.New("user not found")
)

// The login and logout payloads carry no name; credential validation still
// runs with a placeholder so only email and password gate those flows.
const namePlaceholder = "something"

// Service orchestrates the signup, login, and logout flows. Each request is
// handled independently; the only shared state is the injected collaborators,
// all read-only from the service's perspective.
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          *helpers.RabbitPublisher
	MailEnabled  bool
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, mailEnabled bool) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
		MailEnabled:  mailEnabled,
	}
}

type SignupInput struct {
	Name           string
	Email          string
	Password       string
	ProfilePicture string
}

// Session is what a successful signup or login hands back: the identity plus
// the signed token the caller delivers as a cookie.
type Session struct {
	UserID      string
	Name        string
	Email       string
	Token       string
	TokenExpiry time.Time
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Signup registers a new account and opens a session for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := ValidateCredentials(in.Name, in.Email, in.Password); err != nil {
		return nil, err
	}

	_, err := s.Repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrEmailInUse
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &entity.User{
		ID:             helpers.NewUserID(),
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   hash,
		ProfilePicture: in.ProfilePicture,
		Chips:          entity.StartingChips,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		// A concurrent signup with the same email loses the race at the
		// store's unique constraint.
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	sess, err := s.openSession(ctx, u)
	if err != nil {
		return nil, err
	}

	// Post-commit side effects; none of these can fail the signup.
	_ = s.indexUser(ctx, u)
	s.enqueueWelcomeEmail(ctx, u)

	return sess, nil
}

// Login authenticates by email and password and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, u)
}

// Logout re-authenticates the caller and drops the server-side session.
// Requiring email and password to log out mirrors the product's contract;
// the session cookie alone is not enough.
func (s *Service) Logout(ctx context.Context, email, password string) error {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, sessionKey(u.ID)).Err(); err != nil {
			s.log().WithError(err).WithField("user_id", u.ID).Warn("drop session failed")
		}
	}
	return nil
}

// authenticate runs the shared login/logout gate: validation with the name
// placeholder, lookup by email, then hash comparison. Failure precedence is
// fixed: validation, then unknown email, then wrong password.
func (s *Service) authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	if err := ValidateCredentials(namePlaceholder, email, password); err != nil {
		return nil, err
	}
	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	ok, err := helpers.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		// A malformed stored hash is a server fault, not a wrong password.
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrWrongPassword
	}
	return u, nil
}

// openSession mints the signed token and records the session in Redis. A
// signing failure aborts the whole flow; an empty token never reaches a
// success response.
func (s *Service) openSession(ctx context.Context, u *entity.User) (*Session, error) {
	token, exp, err := s.JWT.GenerateToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":         u.ID,
			"email":           u.Email,
			"name":            u.Name,
			"profile_picture": u.ProfilePicture,
			"created_at":      nowRFC3339(),
		}
		// The session record lives exactly as long as the token it backs;
		// a still-valid token must never point at an expired session.
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.JWT.TTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			s.log().WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return &Session{
		UserID:      u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Token:       token,
		TokenExpiry: exp,
	}, nil
}

// GetProfile returns the account behind an authenticated session.
func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

type UpdateProfileInput struct {
	Name           string
	ProfilePicture string
}

// UpdateProfile changes the mutable display fields of an account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.ProfilePicture != "" {
		u.ProfilePicture = in.ProfilePicture
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"name":            u.Name,
			"profile_picture": u.ProfilePicture,
			"updated_at":      nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			s.log().WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	_ = s.indexUser(ctx, u)
	return u, nil
}

// UploadAvatar stores a profile picture in GCS and points the account at it.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	_, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, helpers.NewUserID()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	if _, err := s.UpdateProfile(ctx, userID, UpdateProfileInput{ProfilePicture: url}); err != nil {
		return "", err
	}
	return url, nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"name":            u.Name,
		"profile_picture": u.ProfilePicture,
		"created_at":      u.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.log().WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a simple multi_match search on email and name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Service) enqueueWelcomeEmail(ctx context.Context, u *entity.User) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:      u.Email,
		Subject: "Welcome to the table",
		Text:    fmt.Sprintf("Hi %s, your account is ready. You start with %d chips.", u.Name, u.Chips),
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Warn("enqueue welcome email failed")
	}
}

func (s *Service) log() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}
