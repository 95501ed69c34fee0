package module

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCompatible(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		want       bool
	}{
		{"empty constraint", "0.0.1", "", true},
		{"gte equal", "1.2.0", ">=1.2.0", true},
		{"gte greater", "2.0.0", ">=1.2.0", true},
		{"gte numeric not lexicographic", "1.10.0", ">=1.9.0", true},
		{"gte lower", "1.1.9", ">=1.2.0", false},
		{"compatible same minor", "1.2.7", "~=1.2.3", true},
		{"compatible lower patch", "1.2.2", "~=1.2.3", false},
		{"compatible next minor", "1.3.0", "~=1.2.3", false},
		{"exact match", "1.2.3", "==1.2.3", true},
		{"exact mismatch", "1.2.4", "==1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VersionCompatible(tt.version, tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionCompatible_InvalidConstraint(t *testing.T) {
	for _, constraint := range []string{"<1.0.0", ">=1.0", "~=abc", "^1.0.0"} {
		t.Run(constraint, func(t *testing.T) {
			_, err := VersionCompatible("1.0.0", constraint)
			assert.True(t, errors.Is(err, ErrInvalidConstraint))
		})
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		entry          string
		wantID         string
		wantConstraint string
	}{
		{"python_core", "python_core", ""},
		{"python_core>=1.2.0", "python_core", ">=1.2.0"},
		{"python_core ~= 1.2.0", "python_core", "~=1.2.0"},
		{"legacy-api==0.9.1", "legacy-api", "==0.9.1"},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			id, constraint, err := ParseRequirement(tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantConstraint, constraint)
		})
	}

	t.Run("rejects bad ids", func(t *testing.T) {
		for _, entry := range []string{"", "Upper", "../escape", ">=1.0.0"} {
			_, _, err := ParseRequirement(entry)
			assert.Error(t, err, entry)
		}
	})
}
