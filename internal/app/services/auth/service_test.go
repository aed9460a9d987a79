package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopstack/storefront/internal/app/domain/user"
	"github.com/shopstack/storefront/internal/app/storage/memory"
	apperrors "github.com/shopstack/storefront/internal/errors"
)

func newTestService() *Service {
	return New(memory.New(), NewTokenIssuer("test-secret", time.Hour), nil)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, token, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "Ada@Example.com", Password: "correcthorse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if u.IsAdmin {
		t.Fatal("new accounts must not be admin")
	}

	got, loginToken, err := svc.Login(ctx, "ADA@example.com", "correcthorse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.ID)
	}
	if loginToken == "" {
		t.Fatal("expected a login token")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"missing name", RegisterInput{Email: "a@b.com", Password: "longenough"}},
		{"bad email", RegisterInput{Name: "Ada", Email: "not-an-email", Password: "longenough"}},
		{"short password", RegisterInput{Name: "Ada", Email: "a@b.com", Password: "short"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tc.input)
			svcErr := apperrors.GetServiceError(err)
			if svcErr == nil || svcErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correcthorse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, err := svc.Register(ctx, RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "correcthorse"})
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correcthorse"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ada@example.com", "wrongpassword"},
		{"unknown email", "ghost@example.com", "correcthorse"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(ctx, tc.email, tc.password)
			svcErr := apperrors.GetServiceError(err)
			if svcErr == nil || svcErr.HTTPStatus != http.StatusUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if svcErr.Code != apperrors.CodeBadCredentials {
				t.Fatalf("expected %s, got %s", apperrors.CodeBadCredentials, svcErr.Code)
			}
		})
	}
}

func TestTokenVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	u := user.User{ID: "user-1", Email: "ada@example.com", IsAdmin: true}

	token, err := issuer.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "ada@example.com" || !id.IsAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTokenVerifyFailures(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	u := user.User{ID: "user-1", Email: "ada@example.com"}

	expiredIssuer := NewTokenIssuer("test-secret", -time.Minute)
	expired, err := expiredIssuer.Issue(u)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}

	otherIssuer := NewTokenIssuer("other-secret", time.Hour)
	forged, err := otherIssuer.Issue(u)
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}

	tests := []struct {
		name  string
		token string
		code  apperrors.Code
	}{
		{"expired", expired, apperrors.CodeTokenExpired},
		{"wrong secret", forged, apperrors.CodeInvalidSignature},
		{"garbage", "not.a.token", apperrors.CodeTokenMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.Verify(tc.token)
			svcErr := apperrors.GetServiceError(err)
			if svcErr == nil {
				t.Fatalf("expected service error, got %v", err)
			}
			if svcErr.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, svcErr.Code)
			}
			if svcErr.HTTPStatus != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", svcErr.HTTPStatus)
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, _, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correcthorse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: "Ada Lovelace", Password: "newpassword1"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Ada Lovelace" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
	if updated.Email != "ada@example.com" {
		t.Fatalf("email must be unchanged, got %q", updated.Email)
	}

	if _, _, err := svc.Login(ctx, "ada@example.com", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "correcthorse"); err == nil {
		t.Fatal("old password must stop working")
	}
}
