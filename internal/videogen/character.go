package videogen

import (
	"regexp"

	"videogen-backend/internal/database"
)

// CharacterRef identifies what the avatar video is rendered from: either a
// stock avatar or a user-uploaded talking photo. Exactly one kind is set;
// the classification is decided once when the task is created and stored
// alongside it, never re-derived.
type CharacterRef struct {
	Kind string
	Id   string
}

const maxReferenceLength = 100

var (
	// Provider IDs are alphanumeric with underscores and hyphens.
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// Talking photo IDs are 32 lowercase hex characters.
	talkingPhotoPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// ParseCharacterRef classifies a raw character token. A token of exactly 32
// lowercase hexadecimal characters is a talking photo; everything else is an
// avatar reference.
func ParseCharacterRef(token string) CharacterRef {
	if talkingPhotoPattern.MatchString(token) {
		return CharacterRef{Kind: database.CharacterTalkingPhoto, Id: token}
	}
	return CharacterRef{Kind: database.CharacterAvatar, Id: token}
}

// ValidateReference checks a character or voice token against the
// conservative provider ID shape.
func ValidateReference(field, token string) error {
	if token == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(token) > maxReferenceLength {
		return &ValidationError{Field: field, Reason: "too long"}
	}
	if !referencePattern.MatchString(token) {
		return &ValidationError{Field: field, Reason: "only letters, digits, underscores and hyphens are allowed"}
	}
	return nil
}
