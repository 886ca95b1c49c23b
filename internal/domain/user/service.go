// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"github.com/vaarahi/storefront/internal/pkg/auth"
)

var (
	ErrUserExists       = errors.New("user with this email already exists")
	ErrUserNotFound     = errors.New("no account found with this email")
	ErrInvalidPassword  = errors.New("incorrect password")
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Service owns the user registry and the per-session current user.
type Service struct {
	kv        kvstore.Store
	keys      kvstore.Keyspace
	passwords *auth.PasswordManager
	tokens    *auth.JWTManager
	log       logrus.FieldLogger
	now       func() time.Time

	// registry writes are read-modify-write on one key
	mu sync.Mutex
}

// NewService creates a new user service
func NewService(kv kvstore.Store, keys kvstore.Keyspace, passwords *auth.PasswordManager, tokens *auth.JWTManager, log logrus.FieldLogger) *Service {
	return &Service{
		kv:        kv,
		keys:      keys,
		passwords: passwords,
		tokens:    tokens,
		log:       log.WithField("component", "user"),
		now:       time.Now,
	}
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
}

// LoginRequest represents user login data
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// UpdateProfileRequest carries the fields to change; nil leaves a field as is.
type UpdateProfileRequest struct {
	Name        *string      `json:"name"`
	Phone       *string      `json:"phone"`
	Address     *string      `json:"address"`
	City        *string      `json:"city"`
	State       *string      `json:"state"`
	PostalCode  *string      `json:"postalCode"`
	Country     *string      `json:"country"`
	Preferences *Preferences `json:"preferences"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User        Profile   `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register creates an account and logs it in on the session.
func (s *Service) Register(ctx context.Context, sessionID string, req RegisterRequest) (*AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	switch {
	case req.Name == "":
		return nil, &ValidationError{Field: "name", Message: "is required"}
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return nil, &ValidationError{Field: "email", Message: "must be a valid email address"}
	case req.Password == "":
		return nil, &ValidationError{Field: "password", Message: "is required"}
	case req.Password != req.ConfirmPassword:
		return nil, ErrPasswordMismatch
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, &ValidationError{Field: "password", Message: err.Error()}
		}
		return nil, err
	}

	s.mu.Lock()
	users, err := s.loadUsers(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for _, u := range users {
		if u.Email == req.Email {
			s.mu.Unlock()
			return nil, ErrUserExists
		}
	}

	now := s.now().UTC()
	u := User{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Email:             req.Email,
		PasswordHash:      hash,
		Phone:             strings.TrimSpace(req.Phone),
		Preferences:       Preferences{EmailNotifications: true},
		JoinDate:          now,
		LastLogin:         now,
		LastProfileUpdate: now,
	}
	users = append(users, u)
	err = s.saveUsers(ctx, users)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", u.ID).Info("User registered")

	// A fresh registration stays signed in like a remember-me login.
	return s.startSession(ctx, sessionID, &u, true)
}

// Login verifies credentials and stores the current user on the session.
func (s *Service) Login(ctx context.Context, sessionID string, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, &ValidationError{Field: "email", Message: "email and password are required"}
	}

	s.mu.Lock()
	users, err := s.loadUsers(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := indexByEmail(users, email)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	if err := s.passwords.VerifyPassword(req.Password, users[idx].PasswordHash); err != nil {
		s.mu.Unlock()
		s.log.WithField("user_id", users[idx].ID).Warn("Login with incorrect password")
		return nil, ErrInvalidPassword
	}

	users[idx].LastLogin = s.now().UTC()
	u := users[idx]
	err = s.saveUsers(ctx, users)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, sessionID, &u, req.RememberMe)
}

// Logout forgets the session's current user.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.kv.Delete(ctx, s.keys.Session(sessionID, kvstore.KeyCurrentUser)); err != nil {
		return fmt.Errorf("failed to clear current user: %w", err)
	}
	return nil
}

// Current returns the session's user, refreshed from the registry.
func (s *Service) Current(ctx context.Context, sessionID string) (*Profile, error) {
	var current Profile
	err := kvstore.GetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyCurrentUser), &current)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	var corrupt *kvstore.CorruptValueError
	if errors.As(err, &corrupt) {
		s.log.WithError(err).Warn("Corrupt current user record, logging out")
		_ = s.Logout(ctx, sessionID)
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(users, current.ID)
	if idx < 0 {
		_ = s.Logout(ctx, sessionID)
		return nil, ErrNotLoggedIn
	}

	p := users[idx].Profile()
	p.RememberMe = current.RememberMe
	return &p, nil
}

// UpdateProfile changes the current user's profile in the registry and on the session.
func (s *Service) UpdateProfile(ctx context.Context, sessionID string, req UpdateProfileRequest) (*Profile, error) {
	current, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}

	s.mu.Lock()
	users, err := s.loadUsers(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	idx := indexByID(users, current.ID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNotLoggedIn
	}

	u := &users[idx]
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&u.Name, req.Name)
	apply(&u.Phone, req.Phone)
	apply(&u.Address, req.Address)
	apply(&u.City, req.City)
	apply(&u.State, req.State)
	apply(&u.PostalCode, req.PostalCode)
	apply(&u.Country, req.Country)
	if req.Preferences != nil {
		u.Preferences = *req.Preferences
	}
	u.LastProfileUpdate = s.now().UTC()
	updated := *u

	err = s.saveUsers(ctx, users)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p := updated.Profile()
	p.RememberMe = current.RememberMe
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyCurrentUser), p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ChangePassword replaces the current user's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, sessionID, currentPassword, newPassword string) error {
	current, err := s.Current(ctx, sessionID)
	if err != nil {
		return err
	}

	hash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return &ValidationError{Field: "password", Message: err.Error()}
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	idx := indexByID(users, current.ID)
	if idx < 0 {
		return ErrNotLoggedIn
	}
	if err := s.passwords.VerifyPassword(currentPassword, users[idx].PasswordHash); err != nil {
		return ErrInvalidPassword
	}
	users[idx].PasswordHash = hash
	return s.saveUsers(ctx, users)
}

func (s *Service) startSession(ctx context.Context, sessionID string, u *User, rememberMe bool) (*AuthResponse, error) {
	p := u.Profile()
	p.RememberMe = rememberMe
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyCurrentUser), p); err != nil {
		return nil, fmt.Errorf("failed to store current user: %w", err)
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID, u.Email, sessionID, rememberMe)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     u.ID,
		"session_id":  sessionID,
		"remember_me": rememberMe,
	}).Info("User logged in")

	return &AuthResponse{User: p, AccessToken: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) loadUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := kvstore.GetJSON(ctx, s.kv, s.keys.Global(kvstore.KeyUsers), &users)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func (s *Service) saveUsers(ctx context.Context, users []User) error {
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Global(kvstore.KeyUsers), users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

func indexByEmail(users []User, email string) int {
	for i := range users {
		if users[i].Email == email {
			return i
		}
	}
	return -1
}

func indexByID(users []User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
