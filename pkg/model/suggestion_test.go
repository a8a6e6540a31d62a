package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTuningSuggestionBuilder(t *testing.T) {
	s := NewTuningSuggestionBuilder().
		WithRunUUID("run-1").
		WithCategory("smoother").
		WithSuggestion("switch to red-black Gauss-Seidel").
		WithRationale("observed convergence rate 0.85 exceeds the 0.5 target for this stencil").
		Build()

	assert.Equal(t, "run-1", s.RunUUID)
	assert.Equal(t, "smoother", s.Category)
	assert.Equal(t, "switch to red-black Gauss-Seidel", s.Suggestion)
	assert.NotEmpty(t, s.Rationale)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestTuningSuggestion_IsEmpty(t *testing.T) {
	assert.True(t, (&TuningSuggestion{}).IsEmpty())
	assert.False(t, (&TuningSuggestion{Suggestion: "x"}).IsEmpty())
}
