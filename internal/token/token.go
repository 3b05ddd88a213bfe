package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single error returned for every verification
// failure. Callers never learn whether a token was malformed, forged or
// expired.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the set of claims a token carries about its subject.
type Identity struct {
	UserID      int
	Email       string
	DisplayName string
}

type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed bearer tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given identity, expiring after the
// codec's TTL.
func (c *Codec) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       id.Email,
		DisplayName: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(id.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks the signature and expiry of a token and returns the
// identity it carries.
func (c *Codec) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:      userID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}
