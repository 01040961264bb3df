package middleware

import (
	"strings"
	"testing"
)

func TestGenerateAndParseToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, refreshToken, err := GenerateJWT("64f0a1b2c3d4e5f601020304", "user@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if token == "" || refreshToken == "" {
		t.Fatal("empty token pair")
	}
	if token == refreshToken {
		t.Error("access and refresh tokens are identical")
	}

	for _, tok := range []string{token, refreshToken} {
		claims, err := ParseToken(tok)
		if err != nil {
			t.Fatalf("ParseToken: %v", err)
		}
		if claims.UserID != "64f0a1b2c3d4e5f601020304" {
			t.Errorf("userId = %q", claims.UserID)
		}
		if claims.Email != "user@example.com" {
			t.Errorf("email = %q", claims.Email)
		}
		if claims.UserType != "user" {
			t.Errorf("userType = %q", claims.UserType)
		}
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, _, err := GenerateJWT("64f0a1b2c3d4e5f601020304", "user@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if _, err := ParseToken(tampered); err == nil {
		t.Error("ParseToken accepted a tampered signature")
	}

	if _, err := ParseToken("not-a-token"); err == nil {
		t.Error("ParseToken accepted garbage input")
	}
}
