// backend/internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
)

type Service struct {
	repo      *Repository
	jwtSecret []byte
	log       *logger.Logger
	now       func() time.Time
}

func NewService(repo *Repository, jwtSecret string, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		log:       log,
		now:       time.Now,
	}
}

// Login checks the operator's password and returns a signed HS256 token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	op, err := s.repo.GetOperatorByUsername(ctx, username)
	if errors.Is(err, ErrOperatorNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": op.ID,
		"username":    op.Username,
		"exp":         s.now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

func (s *Service) Register(ctx context.Context, op *models.Operator) error {
	op.Username = strings.TrimSpace(op.Username)
	if op.Username == "" || op.Password == "" {
		return apierr.Validation("username and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(op.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	op.Password = string(hashed)

	err = s.repo.CreateOperator(ctx, op)
	if database.IsUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

// EnsureOperator seeds the bootstrap account. An existing account keeps its
// password.
func (s *Service) EnsureOperator(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		s.log.Warn("no bootstrap operator configured; dashboard login needs an existing account")
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	created, err := s.repo.CreateOperatorIfMissing(ctx, &models.Operator{Username: username, Password: string(hashed)})
	if err != nil {
		return err
	}
	if created {
		s.log.Info("bootstrap operator created", "username", username)
	}
	return nil
}
