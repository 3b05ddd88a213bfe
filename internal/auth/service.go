package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"cloudmeet/internal/token"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// UserStore is what the service needs from the user repository.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

type Service struct {
	store UserStore
	codec *token.Codec
}

func NewService(store UserStore, codec *token.Codec) *Service {
	return &Service{store: store, codec: codec}
}

// Register stores a new user with a bcrypt password hash. Fails with
// ErrEmailTaken when the email is already present.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	_, err := s.store.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:          req.Email,
		HashedPassword: string(hashed),
		DisplayName:    req.DisplayName,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	log.Info().Int("user_id", u.ID).Str("email", u.Email).Msg("user registered")
	return u, nil
}

// Login checks credentials and issues an access token. Missing users
// and bad passwords are indistinguishable to the caller; a matching
// but deactivated account fails with ErrAccountDisabled.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	ts, err := s.codec.Issue(token.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("user_id", u.ID).Msg("user logged in")
	return &TokenResponse{AccessToken: ts, TokenType: "bearer"}, nil
}

// Verify exposes token verification so the identity middleware can be
// built on the service.
func (s *Service) Verify(tokenString string) (*token.Identity, error) {
	return s.codec.Verify(tokenString)
}
