package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
)

type sample struct {
	Title string `json:"title" validate:"required,max=10"`
	Level int    `json:"urgency_level" validate:"min=1,max=3"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := New().Struct(sample{Title: "", Level: 5})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "required", de.Details["title"])
	assert.Equal(t, "max=3", de.Details["urgency_level"])
}

func TestStructPasses(t *testing.T) {
	assert.NoError(t, New().Struct(sample{Title: "ok", Level: 2}))
}
