package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signRaw(t *testing.T, secret []byte, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, exp, err := Generate(opts, "u1", "Alice", "support", "fest-1")
	if err != nil {
		t.Fatal(err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry must be in the future")
	}

	c, err := Verify(opts, token)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != "u1" || c.DisplayName != "Alice" || c.Role != "support" || c.ScopeID != "fest-1" {
		t.Fatalf("claims = %+v", c)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("right")), "u1", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(DefaultOptions([]byte("wrong")), token); err == nil {
		t.Fatal("a token signed with another secret must not verify")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	secret := []byte("s")
	token := signRaw(t, secret, jwtlib.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	if _, err := Verify(DefaultOptions(secret), token); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	opts := DefaultOptions([]byte("s"))
	token, _, err := Generate(opts, "", "Alice", "support", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(opts, token); err == nil {
		t.Fatal("token without a subject must be rejected")
	}
}

func TestVerifyAlgFamilies(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		opts := Options{Secret: []byte("s"), Alg: alg, TTL: time.Hour}
		token, _, err := Generate(opts, "u1", "", "", "")
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		if _, err := Verify(opts, token); err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
	}
	if _, _, err := Generate(Options{Secret: []byte("s"), Alg: "RS256"}, "u1", "", "", ""); err == nil {
		t.Fatal("non-HMAC alg must be rejected")
	}
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	// tokens minted elsewhere may carry email but no name claim
	secret := []byte("s")
	token := signRaw(t, secret, jwtlib.MapClaims{
		"sub":   "u1",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	c, err := Verify(DefaultOptions(secret), token)
	if err != nil {
		t.Fatal(err)
	}
	if c.DisplayName != "alice@example.com" {
		t.Fatalf("DisplayName = %q, want the email fallback", c.DisplayName)
	}
}
