package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlayerProfile(t *testing.T) {
	profile := NewPlayerProfile()
	assert.Equal(t, DefaultDisplayName, profile.DisplayName)
	assert.Zero(t, profile.Experience)
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "minimum length", input: "abc"},
		{name: "maximum length", input: strings.Repeat("a", 16)},
		{name: "digits", input: "player42"},
		{name: "non-ascii letter", input: "Zoë"},
		{name: "multibyte at maximum length", input: strings.Repeat("é", 16)},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "ab", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 17), wantErr: true},
		{name: "space", input: "New Player", wantErr: true},
		{name: "punctuation", input: "abc!", wantErr: true},
		{name: "underscore", input: "a_b_c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDisplayName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
