package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCopiesAndKeepsIdentity(t *testing.T) {
	err := ErrDefaultAddressMissing.With("order_id", int64(7))

	assert.True(t, errors.Is(err, ErrDefaultAddressMissing))
	assert.Equal(t, int64(7), err.Fields["order_id"])
	assert.Nil(t, ErrDefaultAddressMissing.Fields, "sentinel must not be mutated")
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("update order: %w", ErrChangesNotAllowed)

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, KindConflict, e.Kind)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestUnauthorizedCarriesDetail(t *testing.T) {
	err := Unauthorized("token expired")

	assert.True(t, errors.Is(err, ErrAuthRequired))
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, "auth required", err.Message)
	assert.Equal(t, "token expired", err.Detail)
}

func TestDistinctSentinelsDoNotMatch(t *testing.T) {
	assert.False(t, errors.Is(ErrWrongCode, ErrCodeExpired))
	assert.False(t, errors.Is(ErrAddressNotFound, ErrCardNotFound))
}
