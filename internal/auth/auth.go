// Package auth resolves the caller identity for both HTTP surfaces this
// gateway exposes: the OpenAI-compatible proxy routes, which authenticate
// with a bearer virtual key, and the admin routes, which authenticate with
// a master key or a session token.
package auth

import "strings"

// ExtractBearerToken returns the token carried by an Authorization header
// of the form "Bearer <token>". It returns ok=false if the header is empty,
// does not split into exactly two whitespace-separated parts, or the first
// part is not literally "Bearer" (case-insensitive, matching the reference
// this is grounded on). The caller distinguishes a missing header
// (Unauthenticated) from a malformed one (InvalidCredentials).
func ExtractBearerToken(header string) (token string, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
