// Package shared holds types, constants and errors used across the relay
package shared

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ValidRole reports whether role is one the inference backend understands.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// AugmentMessages returns a copy of messages with a leading system message
// when systemMessage is set. messages itself is never modified.
func AugmentMessages(messages []ChatMessage, systemMessage string) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages)+1)
	if systemMessage != "" {
		out = append(out, ChatMessage{Role: RoleSystem, Content: systemMessage})
	}
	return append(out, messages...)
}

func ExtractAPIKey(c echo.Context) (string, error) {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingAuth
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidFormat
	}

	apiKey := parts[1]
	if len(apiKey) != APIKeyLength {
		return "", ErrInvalidKeyLen
	}
	return apiKey, nil
}

// Truncate shortens s for log output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
