package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPermanentCode(t *testing.T) {
	permanent := []string{
		ErrCodeInvalidToken,
		ErrCodeTokenNotRegistered,
		"invalid-registration-token",
		"registration-token-not-registered",
	}
	for _, code := range permanent {
		assert.True(t, IsPermanentCode(code), code)
	}

	transient := []string{"", "messaging/unavailable", "messaging/internal-error", "invalid-argument"}
	for _, code := range transient {
		assert.False(t, IsPermanentCode(code), code)
	}
}
