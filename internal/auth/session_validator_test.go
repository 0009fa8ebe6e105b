package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionIssuer        = "mealtrail-auth"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

func newTestValidator(t *testing.T, clockNow time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signTestToken(t *testing.T, issuedAt, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	signed := signTestToken(t, clockNow.Add(-time.Minute), clockNow.Add(time.Hour))

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateTokenExpired(t *testing.T) {
	clockNow := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	signed := signTestToken(t, clockNow.Add(-2*time.Hour), clockNow.Add(-time.Hour))

	if _, err := validator.ValidateToken(signed); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestSessionValidatorValidateTokenWrongIssuer(t *testing.T) {
	clockNow := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: testSessionUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := validator.ValidateToken(signed); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	clockNow := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	signed := signTestToken(t, clockNow.Add(-time.Minute), clockNow.Add(time.Hour))

	request := httptest.NewRequest(http.MethodGet, "/entries", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signed,
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateRequestPrefersBearerHeader(t *testing.T) {
	clockNow := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	signed := signTestToken(t, clockNow.Add(-time.Minute), clockNow.Add(time.Hour))

	request := httptest.NewRequest(http.MethodGet, "/entries", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+signed)

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Subject != testSessionUserID {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}
