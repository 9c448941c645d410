// Package validator holds the input checks and sanitizers shared by the API
// handlers, the messaging service and the SMTP relay.
package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrInvalidID        = errors.New("invalid identifier")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidLocalPart = errors.New("invalid local part format")
)

const (
	maxIDLength        = 64
	maxDomainLength    = 253
	maxLocalPartLength = 64
	maxFilenameLength  = 255

	// MaxMessageLength caps the body of a direct message
	MaxMessageLength = 10000
)

var (
	// uuids, cuids and similar tokens issued by the user service
	idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// lowercase labels of at most 63 characters, no leading or trailing hyphen
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

	localPartRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// ValidateID checks that an identifier is a plain token safe to embed in
// participant keys (no ':' or '|').
func ValidateID(id string) error {
	return match(id, maxIDLength, idRegex, ErrInvalidID)
}

// ValidateDomain checks the relay domain. Case and surrounding space are ignored.
func ValidateDomain(domain string) error {
	return match(strings.ToLower(strings.TrimSpace(domain)), maxDomainLength, domainRegex, ErrInvalidDomain)
}

// ValidateLocalPart checks the part of a relay address before the '@'.
func ValidateLocalPart(localPart string) error {
	return match(strings.ToLower(strings.TrimSpace(localPart)), maxLocalPartLength, localPartRegex, ErrInvalidLocalPart)
}

func match(input string, maxLen int, re *regexp.Regexp, invalid error) error {
	switch {
	case input == "":
		return ErrEmptyInput
	case len(input) > maxLen:
		return ErrInputTooLong
	case !re.MatchString(input):
		return invalid
	}
	return nil
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination clamps limit to [1, MaxLimit] (0 means DefaultLimit)
// and offset to >= 0.
func ValidatePagination(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SanitizeFilename flattens path separators and parent references, strips
// control characters and falls back to "unnamed".
func SanitizeFilename(filename string) string {
	filename = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(filename)
	filename = truncate(strings.TrimSpace(stripControl(filename, false)), maxFilenameLength)
	if filename == "" {
		return "unnamed"
	}
	return filename
}

// SanitizeString strips control characters and trims. maxLength <= 0 means no cap.
func SanitizeString(input string, maxLength int) string {
	return truncate(strings.TrimSpace(stripControl(input, false)), maxLength)
}

// SanitizeMessage cleans chat text, keeping line breaks and tabs.
func SanitizeMessage(input string) string {
	return truncate(strings.TrimSpace(stripControl(input, true)), MaxMessageLength)
}

func stripControl(input string, keepLayout bool) string {
	return strings.Map(func(r rune) rune {
		if keepLayout && (r == '\n' || r == '\t') {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)
}

func truncate(input string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(input) <= maxRunes {
		return input
	}
	return string([]rune(input)[:maxRunes])
}
