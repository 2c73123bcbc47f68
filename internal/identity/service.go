package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdesk/opsdesk/internal/shared"
)

// RepositoryPort defines data access methods used by the resolver.
type RepositoryPort interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	FindProfileByEmail(ctx context.Context, email string) (Profile, error)
	ListRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	ListGrantedDepartments(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Service resolves authenticated users to principals and issues tokens.
type Service struct {
	repo     RepositoryPort
	secret   []byte
	tokenTTL time.Duration
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, secret string, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Resolve maps a user id to its authorization context. Pure read: highest
// role wins when multiple role rows exist, and a user with no role rows
// resolves to staff rather than failing.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (Principal, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Principal{}, fmt.Errorf("identity: unknown principal %s: %w", userID, shared.ErrUnauthenticated)
		}
		return Principal{}, err
	}
	roles, err := s.repo.ListRoles(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	granted, err := s.repo.ListGrantedDepartments(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:             profile.ID,
		Email:              profile.Email,
		FullName:           profile.FullName,
		Role:               HighestRole(roles),
		PrimaryDepartment:  profile.DepartmentID,
		GrantedDepartments: granted,
	}, nil
}

// Authenticate validates email/password credentials and returns the profile.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	profile, err := s.repo.FindProfileByEmail(ctx, email)
	if err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}
	if profile.PasswordHash == "" {
		return Profile{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}
	return profile, nil
}

// Claims carries the token payload for authenticated requests.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// IssueToken signs a bearer token for the user.
func (s *Service) IssueToken(userID uuid.UUID, email string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyToken parses a bearer token and returns the subject user id.
func (s *Service) VerifyToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: parse token: %w", shared.ErrUnauthenticated)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("identity: invalid claims: %w", shared.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: invalid subject: %w", shared.ErrUnauthenticated)
	}
	return userID, nil
}
