package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options controls signing parameters and TTL.
type Options struct {
	Secret []byte        // HMAC secret (from ENV/KMS in production)
	Alg    string        // HS256/HS384/HS512 (default HS256)
	TTL    time.Duration // token validity (default 2h)
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// Claims is the decoded bearer payload the gateway consumes at connect time.
// DisplayName falls back to Email when the name claim is absent.
type Claims struct {
	UserID      string
	DisplayName string
	Email       string
	Role        string
	ScopeID     string
}

// Generate signs a token carrying the gateway connect claims. Used by the
// identity service; kept here so tests can mint credentials the same way.
func Generate(opts Options, userID, displayName, role, scopeID string) (string, time.Time, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	if displayName != "" {
		claims["name"] = displayName
	}
	if role != "" {
		claims["role"] = role
	}
	if scopeID != "" {
		claims["scope_id"] = scopeID
	}

	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates the token, then maps its payload to Claims.
// A token without a subject is rejected even if the signature is valid.
func Verify(opts Options, token string) (*Claims, error) {
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, err
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// only the HMAC family is accepted
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("claims type mismatch")
	}

	c := &Claims{
		UserID:      str(mc, "sub"),
		DisplayName: str(mc, "name"),
		Email:       str(mc, "email"),
		Role:        str(mc, "role"),
		ScopeID:     str(mc, "scope_id"),
	}
	if c.UserID == "" {
		return nil, errors.New("token missing subject")
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Email
	}
	return c, nil
}

func str(mc jwtlib.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return v
	}
	return ""
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
