package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInvite      = errors.New("invite token is invalid or expired")
)

// TokenType distinguishes staff vs guardian tokens.
type TokenType string

const (
	TokenTypeStaff    TokenType = "staff"
	TokenTypeGuardian TokenType = "guardian"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	DistrictID  int       `json:"district_id"`
	SchoolID    int       `json:"school_id,omitempty"`    // Staff only
	RoleID      int       `json:"role_id,omitempty"`      // Staff only
	Permissions []string  `json:"permissions,omitempty"`  // Staff only
}

// Scope builds the tenant scope embedded in the claims.
func (c *Claims) Scope() model.TenantScope {
	return model.TenantScope{DistrictID: c.DistrictID, SchoolID: c.SchoolID}
}

// AuthService handles password hashing, JWT issuance, and guardian
// activation invites.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateStaffToken creates a JWT for a staff member with their role's
// permissions embedded.
func (s *AuthService) GenerateStaffToken(staff *model.Staff, permissions []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(staff.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:   TokenTypeStaff,
		UserID:      staff.ID,
		DistrictID:  staff.DistrictID,
		SchoolID:    staff.SchoolID,
		RoleID:      staff.RoleID,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	return signed, expiresAt, err
}

// GenerateGuardianToken creates a JWT for an activated guardian.
func (s *AuthService) GenerateGuardianToken(guardian *model.Guardian) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(guardian.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:  TokenTypeGuardian,
		UserID:     guardian.ID,
		DistrictID: guardian.DistrictID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	return signed, expiresAt, err
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// CreateGuardianInvite stores a single-use activation token in Redis
// with the configured TTL and returns it.
func (s *AuthService) CreateGuardianInvite(ctx context.Context, guardianID, districtID int) (string, error) {
	token := uuid.New().String()
	key := config.CacheKey.GuardianInviteKey(token)
	value := fmt.Sprintf("%d:%d", guardianID, districtID)

	if err := s.rdb.Set(ctx, key, value, s.cfg.GuardianInviteTTL).Err(); err != nil {
		return "", fmt.Errorf("store invite: %w", err)
	}
	return token, nil
}

// ConsumeGuardianInvite atomically fetches and deletes an invite token,
// so a token activates exactly one account exactly once.
func (s *AuthService) ConsumeGuardianInvite(ctx context.Context, token string) (*model.GuardianInvite, error) {
	key := config.CacheKey.GuardianInviteKey(token)

	value, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidInvite
		}
		return nil, fmt.Errorf("consume invite: %w", err)
	}

	var invite model.GuardianInvite
	if _, err := fmt.Sscanf(value, "%d:%d", &invite.GuardianID, &invite.DistrictID); err != nil {
		return nil, ErrInvalidInvite
	}
	return &invite, nil
}
