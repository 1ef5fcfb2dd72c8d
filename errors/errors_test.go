package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestAs(t *testing.T) {
	original := &customError{msg: "custom"}
	wrapped := Wrap(original, "wrapped")

	var target *customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "custom", target.msg)
}

func TestTaxonomySentinels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		class string
	}{
		{"validation", NewValidationError("missing input %q", "entity"), IsValidation, "validation"},
		{"processing", NewProcessingError("score out of range: %f", 1.5), IsProcessing, "processing"},
		{"integration", NewIntegrationError("crm fetch failed for %s", "c-1"), IsIntegration, "integration"},
		{"persistence", NewPersistenceError("write to %s failed", "companies"), IsPersistence, "persistence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.class, Class(tt.err))

			// Classification survives further wrapping
			wrapped := Wrap(tt.err, "outer context")
			assert.True(t, tt.check(wrapped))
			assert.Equal(t, tt.class, Class(wrapped))
		})
	}
}

func TestTaxonomyClassesAreDisjoint(t *testing.T) {
	err := NewValidationError("bad payload")

	assert.True(t, IsValidation(err))
	assert.False(t, IsProcessing(err))
	assert.False(t, IsIntegration(err))
	assert.False(t, IsPersistence(err))
}

func TestMarkPreservesCause(t *testing.T) {
	cause := New("connection refused")
	err := MarkIntegration(Wrap(cause, "fetch company c-1"))

	assert.True(t, IsIntegration(err))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMarkNil(t *testing.T) {
	assert.Nil(t, MarkValidation(nil))
	assert.Nil(t, MarkProcessing(nil))
	assert.Nil(t, MarkIntegration(nil))
	assert.Nil(t, MarkPersistence(nil))
}

func TestClassUnknown(t *testing.T) {
	assert.Equal(t, "", Class(nil))
	assert.Equal(t, "unknown", Class(New("unclassified")))
}

func TestIsNotFoundError(t *testing.T) {
	err := NewNotFoundError("task %s", "sweep")
	assert.True(t, IsNotFoundError(err))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(New("other")))
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func TestErrorChaining(t *testing.T) {
	base := New("base error")

	err := Wrap(base, "layer 1")
	err = WithHint(err, "helpful hint")
	err = WithDetail(err, "detailed info")
	err = Wrap(err, "layer 2")

	assert.True(t, Is(err, base))
	assert.Contains(t, err.Error(), "layer 2")
	assert.Contains(t, err.Error(), "layer 1")
	assert.Contains(t, err.Error(), "base error")

	hints := GetAllHints(err)
	assert.Contains(t, hints, "helpful hint")

	details := GetAllDetails(err)
	assert.Contains(t, details, "detailed info")
}

func ExampleNewValidationError() {
	err := NewValidationError("missing required input %q for node %q", "entity", "scoring")
	fmt.Println(IsValidation(err))
	// Output: true
}
