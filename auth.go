package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"siphp/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInvalidSession     = errors.New("invalid session")
)

// Authenticate checks an email/password pair and returns the user with its role loaded.
func Authenticate(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	var user models.User
	if err := db.WithContext(ctx).Preload("Role").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, errInvalidCredentials
		}
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return models.User{}, errInvalidCredentials
	}
	return user, nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashSessionID(sid string) string {
	h := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(h[:])
}

// createSession stores a new session row for userID and returns the raw session id.
func createSession(ctx context.Context, userID uint, ttl time.Duration) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	sid := hex.EncodeToString(b)
	expires := time.Now().Add(ttl)
	s := models.Session{UserID: userID, TokenHash: hashSessionID(sid), ExpiresAt: expires}
	if err := db.WithContext(ctx).Create(&s).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	return sid, expires, nil
}

func findSession(ctx context.Context, sid string) (*models.Session, error) {
	var s models.Session
	if err := db.WithContext(ctx).Where("token_hash = ?", hashSessionID(sid)).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func revokeSession(ctx context.Context, sid string) error {
	return db.WithContext(ctx).Model(&models.Session{}).
		Where("token_hash = ?", hashSessionID(sid)).
		Update("revoked", true).Error
}

func revokeUserSessions(tx *gorm.DB, userID uint) error {
	return tx.Model(&models.Session{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// sessionClaims is the payload of the session cookie.
type sessionClaims struct {
	UserID uint
	Email  string
	Role   string
	SID    string
}

func issueToken(secret []byte, user models.User, sid string, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.RoleName(),
		"sid":     sid,
		"exp":     expires.Unix(),
	})
	return token.SignedString(secret)
}

func parseToken(secret []byte, tokenString string) (sessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return sessionClaims{}, errInvalidSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return sessionClaims{}, errInvalidSession
	}
	// numbers decode as float64
	uid, _ := claims["user_id"].(float64)
	sid, _ := claims["sid"].(string)
	if uid <= 0 || sid == "" {
		return sessionClaims{}, errInvalidSession
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return sessionClaims{UserID: uint(uid), Email: email, Role: role, SID: sid}, nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || pgErrorCode(err) == pgUniqueViolation {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || pgErrorCode(err) == pgForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "violates foreign key constraint")
}
