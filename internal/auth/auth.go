package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/fieldserv/backend/internal/models"
)

// Principal is the verified identity handed to the core. Handlers pass it
// explicitly; nothing in the business layer reads ambient session state.
type Principal struct {
	ID   uuid.UUID
	Role models.Role
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for the user.
func IssueToken(secret string, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	return signed, errors.WithStack(err)
}

// ParseToken verifies the token signature and expiry and returns the principal.
func ParseToken(secret, tokenString string) (Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, errors.Wrap(err, "parse token")
	}
	if !token.Valid {
		return Principal{}, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Principal{}, errors.Wrap(err, "invalid subject")
	}
	return Principal{ID: id, Role: models.Role(c.Role)}, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(hash), errors.WithStack(err)
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
