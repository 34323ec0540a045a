package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndParseJWT(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateJWT("secret", userID, "brand", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %v, want %v", claims.UserID, userID)
	}
	if claims.Role != "brand" {
		t.Errorf("Role = %q, want brand", claims.Role)
	}
}

func TestParseJWTRejects(t *testing.T) {
	userID := uuid.New()
	valid, _ := GenerateJWT("secret", userID, "influencer", time.Hour)
	expiredTok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           userID,
		Role:             "influencer",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	expired, _ := expiredTok.SignedString([]byte("secret"))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           userID,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	foreignStr, _ := foreign.SignedString([]byte("secret"))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"garbage", "secret", "not.a.token"},
		{"wrong issuer", "secret", foreignStr},
		{"expired", "secret", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.secret, tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}
