package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	base := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := New(ErrorTypeNavigation, "open post", base).
		WithAccount("nasa").
		WithURL("https://www.instagram.com/p/AAA")

	assert.Equal(t, "navigation error during open post (@nasa) at https://www.instagram.com/p/AAA: net::ERR_NAME_NOT_RESOLVED", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "auth_wall error", (&Error{Type: ErrorTypeAuthWall}).Error())
}

func TestWithHelpersCopy(t *testing.T) {
	orig := New(ErrorTypeExtraction, "extract", nil)
	tagged := orig.WithAccount("esa")

	assert.Empty(t, orig.Account)
	assert.Equal(t, "esa", tagged.Account)
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("account failed: %w", New(ErrorTypeAuthWall, "open profile", nil))

	assert.Equal(t, ErrorTypeAuthWall, TypeOf(wrapped))
	assert.Equal(t, ErrorTypePageTimeout, TypeOf(fmt.Errorf("load: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("boom")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))

	assert.True(t, Is(wrapped, ErrorTypeAuthWall))
	assert.False(t, Is(nil, ErrorTypeUnknown))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrorTypeConnection, "connect", nil)))
	assert.False(t, IsFatal(New(ErrorTypePageTimeout, "open", nil)))
	assert.False(t, IsFatal(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeNavigation, true},
		{ErrorTypePageTimeout, true},
		{ErrorTypeConnection, false},
		{ErrorTypeAuthWall, false},
		{ErrorTypeExtraction, false},
		{ErrorTypeConfig, false},
		{ErrorTypeRender, false},
		{ErrorTypeStorage, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}
