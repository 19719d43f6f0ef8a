package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/EquityLens/pkg/errors"
)

func TestNew_CapturesCodeAndMessage(t *testing.T) {
	t.Parallel()
	err := errors.New(errors.ErrCodeReportNotFound, "report missing")
	require.NotNil(t, err)
	assert.Equal(t, errors.ErrCodeReportNotFound, err.Code)
	assert.Contains(t, err.Error(), "RPT_001")
	assert.Contains(t, err.Error(), "report missing")
	assert.NotEmpty(t, err.Stack)
}

func TestError_DetailFormatting(t *testing.T) {
	t.Parallel()
	err := errors.Validation("text must not be empty").WithDetail("analyst=a-1")
	assert.Equal(t, "[COMMON_007] text must not be empty: analyst=a-1", err.Error())

	bare := errors.Validation("text must not be empty")
	assert.Equal(t, "[COMMON_007] text must not be empty", bare.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeDatabaseError, "query failed"))
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	t.Parallel()
	inner := errors.ExternalService("embedding service down")
	wrapped := errors.Wrap(inner, errors.ErrCodeUnknown, "while embedding report")
	assert.Equal(t, errors.ErrCodeExternalService, wrapped.Code)
	assert.True(t, stderrors.Is(wrapped, wrapped))
}

func TestWrap_ChainTraversal(t *testing.T) {
	t.Parallel()
	root := fmt.Errorf("connection refused")
	mid := errors.Wrap(root, errors.ErrCodeExternalService, "market data unreachable")
	outer := errors.Wrap(mid, errors.ErrCodeMarketDataFailed, "factual accuracy degraded")

	assert.True(t, errors.IsCode(outer, errors.ErrCodeExternalService))
	assert.True(t, errors.IsCode(outer, errors.ErrCodeMarketDataFailed))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeValidation))
	assert.True(t, stderrors.Is(outer, root))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"report not found", errors.New(errors.ErrCodeReportNotFound, "x"), true},
		{"assessment not found", errors.New(errors.ErrCodeAssessmentNotFound, "x"), true},
		{"generic not found", errors.NotFound("x"), true},
		{"validation", errors.Validation("x"), false},
		{"plain error", fmt.Errorf("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.IsNotFound(tc.err))
		})
	}
}

func TestIsDegradable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"external service", errors.ExternalService("down"), true},
		{"timeout", errors.Timeout("deadline"), true},
		{"index conflict", errors.IndexConflict("write race"), true},
		{"wrapped external", errors.Wrap(errors.ExternalService("down"), errors.ErrCodeMarketDataFailed, "ctx"), true},
		{"validation", errors.Validation("empty"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.IsDegradable(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, errors.ErrCodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.ErrCodeUnknown, errors.GetCode(fmt.Errorf("plain")))
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(errors.Validation("x")))
}

func TestWithCause(t *testing.T) {
	t.Parallel()
	root := fmt.Errorf("root")
	err := errors.Internal("wrapped").WithCause(root)
	assert.True(t, stderrors.Is(err, root))

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithCause(root))
	assert.Nil(t, nilErr.WithDetail("x"))
}
