package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "a_test_secret_long_enough_for_hs256"
	testIssuer = "codechicks"
)

func TestVerifier_ValidToken(t *testing.T) {
	req := require.New(t)
	token, err := NewIssuer(testSecret, testIssuer).Issue(Identity{
		UserID:      "alice@example.com",
		DisplayName: "Alice",
		Role:        RoleAdmin,
	}, time.Hour)
	req.NoError(err)

	identity, err := NewVerifier(testSecret, testIssuer).Verify(token)
	req.NoError(err)
	req.Equal("alice@example.com", identity.UserID)
	req.Equal("Alice", identity.DisplayName)
	req.True(identity.IsAdmin())
}

func TestVerifier_DefaultsRoleAndName(t *testing.T) {
	req := require.New(t)
	token, err := NewIssuer(testSecret, testIssuer).Issue(Identity{UserID: "bob@example.com"}, time.Hour)
	req.NoError(err)

	identity, err := NewVerifier(testSecret, testIssuer).Verify(token)
	req.NoError(err)
	req.Equal(RoleUser, identity.Role)
	req.Equal("bob", identity.DisplayName)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	req := require.New(t)
	token, err := NewIssuer(testSecret, testIssuer).Issue(Identity{UserID: "alice@example.com"}, -time.Minute)
	req.NoError(err)

	_, err = NewVerifier(testSecret, testIssuer).Verify(token)
	req.ErrorIs(err, ErrExpiredCredential)
	req.NotErrorIs(err, ErrInvalidCredential)
}

func TestVerifier_InvalidTokens(t *testing.T) {
	issued := func(secret, issuer string, identity Identity) string {
		token, err := NewIssuer(secret, issuer).Issue(identity, time.Hour)
		require.NoError(t, err)
		return token
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice@example.com", Issuer: testIssuer},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", issued("another_secret_entirely_different", testIssuer, Identity{UserID: "alice@example.com"})},
		{"wrong issuer", issued(testSecret, "someone-else", Identity{UserID: "alice@example.com"})},
		{"missing subject", issued(testSecret, testIssuer, Identity{DisplayName: "Ghost"})},
		{"unknown role", issued(testSecret, testIssuer, Identity{UserID: "alice@example.com", Role: "root"})},
		{"missing expiry", noExpiry},
	}

	verifier := NewVerifier(testSecret, testIssuer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestFallbackName(t *testing.T) {
	req := require.New(t)
	req.Equal("alice", FallbackName("alice@example.com"))
	req.Equal("bob", FallbackName("bob"))
	req.Equal("@odd", FallbackName("@odd"))
}
