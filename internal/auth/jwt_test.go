package auth

import (
	"errors"
	"testing"
	"time"

	"hireloop/config"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Minute, Issuer: "hireloop"}
	tok, err := GenerateAccessToken(cfg, 7, "owner@example.com", "BUSINESS")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	claims, err := ParseAccessToken(cfg, tok)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "BUSINESS" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Minute, Issuer: "hireloop"}
	other := &config.JWTConfig{AccessSecret: "other", AccessExpiry: time.Minute, Issuer: "hireloop"}
	expired := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: -time.Minute, Issuer: "hireloop"}

	forged, _ := GenerateAccessToken(other, 7, "", "ADMIN")
	stale, _ := GenerateAccessToken(expired, 7, "", "ADMIN")
	for name, tok := range map[string]string{"forged": forged, "expired": stale, "garbage": "not-a-jwt"} {
		if _, err := ParseAccessToken(cfg, tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}
