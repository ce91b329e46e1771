package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/marketplace/pkg/identity"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is issued by the identity provider. Role decodes through identity.Role, so
// tokens carrying an unknown role fail to parse.
type AccessClaims struct {
	Role  identity.Role `json:"role"`
	Name  string        `json:"name,omitempty"`
	Email string        `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Principal() (identity.Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	if !c.Role.Valid() {
		return identity.Principal{}, fmt.Errorf("%w: role missing", ErrInvalidToken)
	}
	return identity.Principal{UserID: userID, Role: c.Role, Name: c.Name, Email: c.Email}, nil
}

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return accessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func NewAccessToken(p identity.Principal, secret []byte, exp time.Time) (string, error) {
	claims := AccessClaims{
		Role:  p.Role,
		Name:  p.Name,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
