package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNoToken      = errors.New("no access token in request")
	ErrInvalidToken = errors.New("invalid access token")
)

const base64Prefix = "base64-"

// SessionCookieName is the cookie Supabase's SSR helpers store the session in.
func SessionCookieName(projectRef string) string {
	return "sb-" + projectRef + "-auth-token"
}

// ExtractTokenFromRequest returns the access token from the Authorization header,
// falling back to the Supabase session cookie.
func ExtractTokenFromRequest(r *http.Request, projectRef string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Bearer token format: "Bearer {token}"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errors.New("authorization header format must be 'Bearer {token}'")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	return TokenFromCookies(r, projectRef)
}

// TokenFromCookies reassembles the session cookie, which may be split into
// numbered chunks (name.0, name.1, ...), and extracts its access token. With an
// empty projectRef the first sb-*-auth-token cookie found is used.
func TokenFromCookies(r *http.Request, projectRef string) (string, error) {
	name := ""
	if projectRef != "" {
		name = SessionCookieName(projectRef)
	} else {
		name = discoverCookieName(r.Cookies())
	}
	if name == "" {
		return "", ErrNoToken
	}

	raw := ""
	if c, err := r.Cookie(name); err == nil {
		raw = c.Value
	} else {
		var b strings.Builder
		for i := 0; ; i++ {
			c, err := r.Cookie(name + "." + strconv.Itoa(i))
			if err != nil {
				break
			}
			b.WriteString(c.Value)
		}
		raw = b.String()
	}
	if raw == "" {
		return "", ErrNoToken
	}

	return ParseSessionCookie(raw)
}

func discoverCookieName(cookies []*http.Cookie) string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		name := c.Name
		if i := strings.LastIndex(name, "."); i > 0 {
			if _, err := strconv.Atoi(name[i+1:]); err == nil {
				name = name[:i]
			}
		}
		if strings.HasPrefix(name, "sb-") && strings.HasSuffix(name, "-auth-token") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// ParseSessionCookie decodes a session cookie value. The value may be URL-encoded,
// carry a "base64-" prefix, and hold either a session object with access_token or
// the legacy array form whose first element is the access token. A bare JWT is
// returned as is.
func ParseSessionCookie(value string) (string, error) {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		decoded = value
	}
	decoded = strings.TrimSpace(decoded)

	if strings.HasPrefix(decoded, base64Prefix) {
		payload := strings.TrimPrefix(decoded, base64Prefix)
		data, err := decodeBase64(payload)
		if err != nil {
			return "", fmt.Errorf("%w: base64 session cookie: %v", ErrInvalidToken, err)
		}
		decoded = strings.TrimSpace(string(data))
	}

	switch {
	case strings.HasPrefix(decoded, "{"):
		var session struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal([]byte(decoded), &session); err != nil {
			return "", fmt.Errorf("%w: session object: %v", ErrInvalidToken, err)
		}
		if session.AccessToken == "" {
			return "", ErrNoToken
		}
		return session.AccessToken, nil

	case strings.HasPrefix(decoded, "["):
		var parts []interface{}
		if err := json.Unmarshal([]byte(decoded), &parts); err != nil {
			return "", fmt.Errorf("%w: session array: %v", ErrInvalidToken, err)
		}
		if len(parts) == 0 {
			return "", ErrNoToken
		}
		token, ok := parts[0].(string)
		if !ok || token == "" {
			return "", ErrNoToken
		}
		return token, nil

	case strings.Count(decoded, ".") == 2:
		return decoded, nil
	}

	return "", fmt.Errorf("%w: unrecognised session cookie", ErrInvalidToken)
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("not base64")
}
