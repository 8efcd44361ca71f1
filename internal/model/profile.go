package model

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultDisplayName   = "New Player"
	MinDisplayNameLength = 3
	MaxDisplayNameLength = 16
)

// PlayerProfile is the persisted player record (PLAYER_DATA)
type PlayerProfile struct {
	DisplayName string `json:"displayName"`
	Experience  int    `json:"experience"`
}

// NewPlayerProfile returns the profile created on first sign-in
func NewPlayerProfile() PlayerProfile {
	return PlayerProfile{
		DisplayName: DefaultDisplayName,
		Experience:  0,
	}
}

// ValidateDisplayName checks length and that only letters and digits are used
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidDisplayName, MinDisplayNameLength)
	}
	if n > MaxDisplayNameLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidDisplayName, MaxDisplayNameLength)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: only letters and digits are allowed", ErrInvalidDisplayName)
		}
	}
	return nil
}
