// Package validation provides input validation helpers for the Orion API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB).
const MaxRequestSize = 1 << 20

var (
	// slugRegex validates tenant slugs (URL-friendly, e.g. "joao-iptv").
	slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)
	// usernameRegex validates login usernames.
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{3,64}$`)
)

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidSlug checks that a string is a usable tenant slug.
func IsValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// IsValidUsername checks that a string is a usable login username.
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// SanitizeString trims whitespace, strips null bytes and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// NormalizeSlug lowercases and trims a slug candidate.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
