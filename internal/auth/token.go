package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var validate = validator.New()

// Claims is the JWT payload understood by the chat core. The subject carries
// the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type verifiedClaims struct {
	UserID string `validate:"required,max=254"`
	Role   Role   `validate:"oneof=user admin"`
}

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

func NewVerifier(secret, issuer string) *Verifier {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(options...),
	}
}

// Verify parses the credential and returns the identity it vouches for.
// Expired tokens yield ErrExpiredCredential, every other failure
// ErrInvalidCredential.
func (v *Verifier) Verify(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrInvalidCredential)
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: %v", ErrExpiredCredential, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	if err = validate.Struct(verifiedClaims{UserID: claims.Subject, Role: role}); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = FallbackName(claims.Subject)
	}
	return Identity{UserID: claims.Subject, DisplayName: name, Role: role}, nil
}

// Issuer signs tokens the Verifier accepts.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for identity valid for ttl. A negative ttl produces an
// already expired token.
func (i *Issuer) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		Name: identity.DisplayName,
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
