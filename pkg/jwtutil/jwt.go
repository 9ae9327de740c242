package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// OrganizationClaims identifies the organization a bearer token was issued to
type OrganizationClaims struct {
	OrganizationID   uint   `json:"organization_id"`
	Email            string `json:"email"`
	OrganizationName string `json:"organization_name"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *JWTConfig
	now    func() time.Time
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(config *JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: config,
		now:    time.Now,
	}
}

// GenerateToken issues a signed token for the organization
func (j *JWTUtil) GenerateToken(organizationID uint, email, organizationName string) (string, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return "", errors.New("JWT configuration not provided")
	}

	issued := j.now()
	claims := OrganizationClaims{
		OrganizationID:   organizationID,
		Email:            email,
		OrganizationName: organizationName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(organizationID),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Duration(j.config.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*OrganizationClaims, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&OrganizationClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(j.config.SigningKey), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*OrganizationClaims); ok && token.Valid && claims.OrganizationID != 0 {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
