package service

import (
	"testing"
	"time"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

func testAuthService() *AuthService {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4, // minimum cost keeps tests fast
	}
	return NewAuthService(cfg, nil)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc := testAuthService()

	hash, err := svc.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("password stored in the clear")
	}

	if err := svc.CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := svc.CheckPassword(hash, "wrong"); err != ErrInvalidCredentials {
		t.Errorf("CheckPassword with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestFacultyTokenRoundTrip(t *testing.T) {
	svc := testAuthService()

	token, err := svc.GenerateFacultyToken(42)
	if err != nil {
		t.Fatalf("GenerateFacultyToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeFaculty {
		t.Errorf("token type = %s, want %s", claims.TokenType, TokenTypeFaculty)
	}
	if claims.UserID != 42 {
		t.Errorf("user id = %d, want 42", claims.UserID)
	}
	if claims.ID == "" {
		t.Error("token missing JTI")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := testAuthService()

	other := NewAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour}, nil)
	token, err := other.GenerateFacultyToken(1)
	if err != nil {
		t.Fatalf("GenerateFacultyToken: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("token signed with a different secret validated")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute}
	svc := NewAuthService(cfg, nil)

	token, err := svc.GenerateFacultyToken(1)
	if err != nil {
		t.Fatalf("GenerateFacultyToken: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateTokenRejectsWrongAlgorithm(t *testing.T) {
	svc := testAuthService()

	// An unsigned token must never pass, regardless of claims.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenType: TokenTypeStudent, UserID: 1})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := svc.ValidateToken(raw); err == nil {
		t.Fatal("alg=none token validated")
	}
}
