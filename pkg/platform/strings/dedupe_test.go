package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "single element",
			input:    []string{"tenant@example.com"},
			expected: []string{"tenant@example.com"},
		},
		{
			name:     "lowercases and dedupes",
			input:    []string{"Owner@example.com", "owner@example.com", "OWNER@EXAMPLE.COM"},
			expected: []string{"owner@example.com"},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  tenant@example.com  ", "owner@example.com "},
			expected: []string{"tenant@example.com", "owner@example.com"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"tenant@example.com", "", "  ", "owner@example.com"},
			expected: []string{"tenant@example.com", "owner@example.com"},
		},
		{
			name:     "preserves order of first occurrence",
			input:    []string{"c@example.com", "a@example.com", "c@example.com", "b@example.com"},
			expected: []string{"c@example.com", "a@example.com", "b@example.com"},
		},
		{
			name:     "same party under two roles folds to one recipient",
			input:    []string{"  Guarantor@Example.com ", "tenant@example.com", "guarantor@example.com"},
			expected: []string{"guarantor@example.com", "tenant@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrimLower(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
