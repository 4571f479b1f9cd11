package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinTitleLen       = 3
	MaxTitleLen       = 200
	MinDescriptionLen = 10
	MaxDescriptionLen = 2000
)

var ErrInvalidTopic = errors.New("invalid research topic")

// ValidateTopic checks the inbound title and description lengths.
func ValidateTopic(title, description string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(title)); n < MinTitleLen || n > MaxTitleLen {
		return fmt.Errorf("%w: title must be %d-%d characters, got %d", ErrInvalidTopic, MinTitleLen, MaxTitleLen, n)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(description)); n < MinDescriptionLen || n > MaxDescriptionLen {
		return fmt.Errorf("%w: description must be %d-%d characters, got %d", ErrInvalidTopic, MinDescriptionLen, MaxDescriptionLen, n)
	}
	return nil
}
