package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"invoice-service/pkg/jwtutil"
)

func newEcho(jwtUtil *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	e.Use(RequestIDMiddleware())
	e.GET("/me", func(c echo.Context) error {
		id, ok := OrganizationID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "name": c.Get(OrganizationNameKey)})
	}, AuthMiddleware(jwtUtil))
	return e
}

func TestAuthMiddleware(t *testing.T) {
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "secret", ExpirationHours: 1})
	e := newEcho(jwtUtil)

	token, err := jwtUtil.GenerateToken(3, "a@b.test", "Acme")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no scheme", token, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code)
			require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
