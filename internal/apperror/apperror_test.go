package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:   http.StatusBadRequest,
		Unauthorized: http.StatusUnauthorized,
		Forbidden:    http.StatusForbidden,
		NotFound:     http.StatusNotFound,
		Conflict:     http.StatusConflict,
		Upstream:     http.StatusBadGateway,
		Internal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		require.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("create order: %w", Wrap(Upstream, "Payment gateway unavailable", cause))

	require.Equal(t, Upstream, KindOf(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, Internal, KindOf(cause))
}
