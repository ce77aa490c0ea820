package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"siphp/models"

	qt "github.com/frankban/quicktest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func testUser(id uint, role string) *models.User {
	return &models.User{ID: id, Nama: "Tester", Email: fmt.Sprintf("u%d@example.com", id), Role: models.Role{Name: role}}
}

func TestIssueAndParseToken(t *testing.T) {
	c := qt.New(t)
	secret := []byte("test-secret")
	u := testUser(42, models.RoleAdmin)

	tok, err := issueToken(secret, *u, "sid-123", time.Now().Add(time.Hour))
	c.Assert(err, qt.IsNil)

	claims, err := parseToken(secret, tok)
	c.Assert(err, qt.IsNil)
	c.Assert(claims, qt.DeepEquals, sessionClaims{UserID: 42, Email: "u42@example.com", Role: models.RoleAdmin, SID: "sid-123"})
}

func TestParseTokenRejects(t *testing.T) {
	secret := []byte("test-secret")
	u := testUser(7, models.RoleUser)
	valid := func(c *qt.C, sid string, exp time.Time, key []byte) string {
		tok, err := issueToken(key, *u, sid, exp)
		c.Assert(err, qt.IsNil)
		return tok
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7, "sid": "x", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	qt.Assert(t, err, qt.IsNil)

	tests := []struct {
		name  string
		token func(c *qt.C) string
	}{
		{"garbage", func(*qt.C) string { return "not-a-jwt" }},
		{"wrong secret", func(c *qt.C) string { return valid(c, "s", time.Now().Add(time.Hour), []byte("other")) }},
		{"expired", func(c *qt.C) string { return valid(c, "s", time.Now().Add(-time.Minute), secret) }},
		{"missing sid", func(c *qt.C) string { return valid(c, "", time.Now().Add(time.Hour), secret) }},
		{"alg none", func(*qt.C) string { return unsigned }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			_, err := parseToken(secret, tt.token(c))
			c.Assert(err, qt.Equals, errInvalidSession)
		})
	}
}

func TestHashSessionID(t *testing.T) {
	c := qt.New(t)
	a := hashSessionID("abc")
	c.Assert(a, qt.HasLen, 64)
	c.Assert(hashSessionID("abc"), qt.Equals, a)
	c.Assert(hashSessionID("abd"), qt.Not(qt.Equals), a)
}

func TestConstraintErrors(t *testing.T) {
	c := qt.New(t)
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})

	c.Check(isUniqueConstraintError(unique), qt.IsTrue)
	c.Check(isUniqueConstraintError(gorm.ErrDuplicatedKey), qt.IsTrue)
	c.Check(isUniqueConstraintError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`)), qt.IsTrue)
	c.Check(isUniqueConstraintError(fk), qt.IsFalse)
	c.Check(isUniqueConstraintError(nil), qt.IsFalse)

	c.Check(isForeignKeyError(fk), qt.IsTrue)
	c.Check(isForeignKeyError(gorm.ErrForeignKeyViolated), qt.IsTrue)
	c.Check(isForeignKeyError(unique), qt.IsFalse)
	c.Check(isForeignKeyError(nil), qt.IsFalse)
}

func TestNormalizeEmail(t *testing.T) {
	qt.Assert(t, normalizeEmail("  Admin@Example.COM "), qt.Equals, "admin@example.com")
}
