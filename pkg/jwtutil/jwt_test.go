package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	util := NewJWTUtil(&JWTConfig{SigningKey: "secret", ExpirationHours: 120})

	token, err := util.GenerateToken(7, "billing@acme.test", "Acme")
	require.NoError(t, err)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.OrganizationID)
	require.Equal(t, "billing@acme.test", claims.Email)
	require.Equal(t, "Acme", claims.OrganizationName)
	require.Equal(t, 120*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestValidateToken(t *testing.T) {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	util := NewJWTUtil(&JWTConfig{SigningKey: "secret", ExpirationHours: 120})
	util.now = func() time.Time { return issued }

	token, err := util.GenerateToken(1, "a@b.test", "A")
	require.NoError(t, err)

	t.Run("still valid just before five days", func(t *testing.T) {
		util.now = func() time.Time { return issued.Add(119 * time.Hour) }
		_, err := util.ValidateToken(token)
		require.NoError(t, err)
	})

	t.Run("expired after five days", func(t *testing.T) {
		util.now = func() time.Time { return issued.Add(121 * time.Hour) }
		_, err := util.ValidateToken(token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTUtil(&JWTConfig{SigningKey: "other", ExpirationHours: 120})
		other.now = func() time.Time { return issued }
		_, err := other.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := util.ValidateToken("not.a.token")
		require.Error(t, err)
	})
}

func TestMissingConfig(t *testing.T) {
	_, err := NewJWTUtil(nil).GenerateToken(1, "a@b.test", "A")
	require.Error(t, err)
}
