package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/models"
)

const minPasswordLen = 8

type UserService struct {
	db        core.DbClient
	jwtSecret []byte
	jwtTTL    time.Duration
	now       func() time.Time
}

func NewUserService(db core.DbClient, jwtSecret string, jwtTTL time.Duration) *UserService {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &UserService{db: db, jwtSecret: []byte(jwtSecret), jwtTTL: jwtTTL, now: time.Now}
}

// Signup stores a new user with a bcrypt hash of password. A duplicate email
// yields core.ErrEmailTaken; malformed input yields *core.ValidationError.
func (s *UserService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, &core.ValidationError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &core.ValidationError{Field: "password", Msg: "must be at most 72 bytes"}
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			return nil, core.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Printf("UserService: user %s signed up", user.ID)
	return user, nil
}

// Login checks the credentials and returns a signed token. Unknown email and
// wrong password both yield core.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", core.ErrInvalidCredentials
	}

	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		// Spend the same bcrypt time as a real mismatch.
		_ = bcrypt.CompareHashAndPassword(decoyHash(), []byte(password))
		return "", core.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", core.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *UserService) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"iat":     now.Unix(),
		"exp":     now.Add(s.jwtTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &core.ValidationError{Field: "email", Msg: "is required"}
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", &core.ValidationError{Field: "email", Msg: "is not a valid address"}
	}
	return strings.ToLower(addr.Address), nil
}

var (
	decoyOnce sync.Once
	decoy     []byte
)

func decoyHash() []byte {
	decoyOnce.Do(func() {
		decoy, _ = bcrypt.GenerateFromPassword([]byte("scanlens-decoy-password"), bcrypt.DefaultCost)
	})
	return decoy
}
