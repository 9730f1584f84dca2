package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/errs"
)

func TestError_Is(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := errs.New(errs.NotFound, "document not found", cause)

	assert.True(t, errors.Is(err, errs.NotFoundErr))
	assert.False(t, errors.Is(err, errs.ValidationErr))
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", errs.New(errs.UpstreamTransient, "llm unavailable", nil))
	assert.Equal(t, errs.UpstreamTransient, errs.KindOf(wrapped))
	assert.Equal(t, errs.Internal, errs.KindOf(fmt.Errorf("plain")))
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient retries", errs.New(errs.UpstreamTransient, "timeout", nil), true},
		{"permanent does not retry", errs.New(errs.UpstreamPermanent, "bad request", nil), false},
		{"validation does not retry", errs.New(errs.Validation, "bad uuid", nil), false},
		{"plain error does not retry", fmt.Errorf("plain"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errs.IsRetryable(tc.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := errs.New(errs.Internal, "wrapped", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}
