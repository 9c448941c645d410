// Package emailaddr extracts the address and display name from raw email header values.
package emailaddr

import (
	"regexp"
	"strings"
)

// Address is a parsed mailbox header value
type Address struct {
	Name  string
	Email string
}

var angleAddr = regexp.MustCompile(`<([^<>]+)>`)

// Parse reads a header value such as `"Jane Doe" <jane@example.com>`.
// Without an angle-bracket form the whole trimmed value is taken as the address.
func Parse(header string) Address {
	header = strings.TrimSpace(header)
	if header == "" {
		return Address{}
	}

	m := angleAddr.FindStringSubmatchIndex(header)
	if m == nil {
		return Address{Name: header, Email: header}
	}

	email := strings.TrimSpace(header[m[2]:m[3]])
	name := strings.TrimSpace(header[:m[0]] + header[m[1]:])
	name = strings.TrimSpace(strings.Trim(name, `"'`))
	if name == "" {
		name = email
	}
	return Address{Name: name, Email: email}
}

// Normalize lowercases and trims an address for comparisons
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Equal compares two addresses case-insensitively
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
