package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tulisin/apperr"
	"tulisin/auth"
	"tulisin/db"
	"tulisin/models"
	"tulisin/repository"
)

type AuthService struct {
	db         *db.DB
	tokens     *auth.TokenManager
	bcryptCost int
}

func NewAuthService(d *db.DB, tokens *auth.TokenManager, bcryptCost int) *AuthService {
	return &AuthService{db: d, tokens: tokens, bcryptCost: bcryptCost}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	user, err := db.InTxResult(ctx, s.db, func(tx *db.Tx) (*models.User, error) {
		exists, err := repository.EmailExists(ctx, tx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.Conflict("Email already exists")
		}

		hash, err := auth.HashPassword(in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}

		return repository.CreateUser(ctx, tx, repository.CreateUserParams{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthResult, error) {
	user, err := db.WithClientResult(ctx, s.db, func(c *db.Client) (*models.User, error) {
		return repository.FindUserByEmail(ctx, c, NormalizeEmail(in.Email))
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.InvalidCredentials()
	}

	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidCredentials()
	}

	return s.issue(user)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return db.WithClientResult(ctx, s.db, func(c *db.Client) (*models.User, error) {
		user, err := repository.FindUserByID(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, apperr.Authentication("User not found")
		}
		return user, nil
	})
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	tok, err := s.tokens.Issue(auth.Principal{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{
		User:      *user,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt.Format(time.RFC3339),
	}, nil
}
