package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("assign: %w", NewNoEligibleAgent("t-1"))
	assert.True(t, HasCode(err, CodeNoEligibleAgent))
	assert.False(t, HasCode(err, CodeCapacityExceeded))
	assert.False(t, HasCode(errors.New("plain"), CodeNoEligibleAgent))
}

func TestToDomainError(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)

	de = ToDomainError(NewInvalidTransition("closed", "escalate"))
	assert.Equal(t, CodeInvalidTransition, de.Code)
	assert.Equal(t, "closed", de.Details["status"])
	assert.Nil(t, ToDomainError(nil))
}

func TestRecoverable(t *testing.T) {
	cases := map[string]bool{
		CodeInvalidTransition:      true,
		CodeCapacityExceeded:       true,
		CodeNoEligibleAgent:        true,
		CodeSLARuleMissing:         true,
		CodeConcurrentModification: true,
		CodeNotFound:               false,
		CodeValidation:             false,
	}
	for code, want := range cases {
		de := NewDomainError(code, "x", http.StatusConflict, nil)
		assert.Equal(t, want, de.Recoverable(), code)
	}
}
