package marketplace

import (
	"fmt"
	"net/url"
	"strings"
)

// SessionCookieName is the cookie the marketplace authenticates sessions with.
const SessionCookieName = "respondent.session.sid"

// Credential authenticates one user's marketplace session.
type Credential struct {
	SessionToken  string
	Authorization string
}

// MalformedCredentialError reports credential input the parser could not use.
type MalformedCredentialError struct {
	Reason string
}

func (e *MalformedCredentialError) Error() string {
	return "malformed credential: " + e.Reason
}

// ParseCredentialBlob extracts the session token from pasted user input.
//
// Grammar:
//
//	input = token | pairs
//	pairs = pair *( ";" pair )        ; cookie-header style
//	pair  = key "=" value
//	token = any text without ";"
//
// Input is treated as pairs when it contains ";" or names the session cookie
// explicitly; otherwise the whole input is the token. Values are
// URL-unescaped, since tokens copied out of devtools arrive as "s%3A...".
// A pairs-style blob must contain a non-empty session cookie value.
func ParseCredentialBlob(raw string) (Credential, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Credential{}, &MalformedCredentialError{Reason: "empty input"}
	}

	delimited := strings.Contains(trimmed, ";") || strings.Contains(trimmed, SessionCookieName)
	if !delimited {
		return Credential{SessionToken: unescape(trimmed)}, nil
	}

	for _, segment := range strings.Split(trimmed, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			if key == SessionCookieName {
				return Credential{}, &MalformedCredentialError{
					Reason: fmt.Sprintf("segment %q has no value", segment),
				}
			}
			continue
		}
		if strings.TrimSpace(key) != SessionCookieName {
			continue
		}
		token := unescape(strings.TrimSpace(value))
		if token == "" {
			return Credential{}, &MalformedCredentialError{Reason: "empty session value"}
		}
		return Credential{SessionToken: token}, nil
	}

	return Credential{}, &MalformedCredentialError{
		Reason: fmt.Sprintf("no %s cookie in blob", SessionCookieName),
	}
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
