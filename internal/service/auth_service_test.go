package service

import (
	"context"
	"errors"
	"testing"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/hash"
	"hospital-console-go/pkg/token"
)

func newTestAuth(t *testing.T) (AuthService, Authenticator) {
	t.Helper()
	adminHash, err := hash.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	staffHash, err := hash.HashPassword("staff-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	jwtManager := token.NewJWTManager("test-secret", 1)
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Operators: []config.OperatorConfig{
			{Username: "root", PasswordHash: adminHash, Role: "admin"},
			{Username: "nurse.joy", PasswordHash: staffHash, Role: "staff"},
			{Username: "walkin", PasswordHash: staffHash, Role: "visitor"},
		},
	}
	return NewAuthService(cfg, jwtManager), NewTokenAuthenticator(jwtManager)
}

func TestAuthService_Login(t *testing.T) {
	auth, _ := newTestAuth(t)

	tok, role, err := auth.Login("root", "admin-pass")
	if err != nil || tok == "" || role != model.RoleAdmin {
		t.Fatalf("Login(root) = %q, %q, %v", tok, role, err)
	}
	if _, _, err := auth.Login("root", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong password = %v, want ErrUnauthorized", err)
	}
	if _, _, err := auth.Login("nobody", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown user = %v, want ErrUnauthorized", err)
	}
	if _, _, err := auth.Login("walkin", "staff-pass"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-privileged operator = %v, want ErrUnauthorized", err)
	}
}

func TestSelectRole_WithAuthenticator(t *testing.T) {
	auth, authenticator := newTestAuth(t)
	adminToken, _, _ := auth.Login("root", "admin-pass")
	staffToken, _, _ := auth.Login("nurse.joy", "staff-pass")

	tests := []struct {
		name     string
		role     model.Role
		token    string
		wantErr  error
		wantName string
	}{
		{"admin without token", model.RoleAdmin, "", ErrUnauthorized, ""},
		{"admin with staff token", model.RoleAdmin, staffToken, ErrUnauthorized, ""},
		{"admin with garbage", model.RoleAdmin, "not-a-jwt", ErrUnauthorized, ""},
		{"admin with admin token", model.RoleAdmin, adminToken, nil, "root"},
		{"staff with admin token", model.RoleStaff, "Bearer " + adminToken, nil, "root"},
		{"staff with staff token", model.RoleStaff, staffToken, nil, "nurse.joy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, authenticator)
			sess, err := h.sessions.SelectRole(context.Background(), tt.role, tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if sess.Active() {
					t.Error("session activated despite auth failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectRole: %v", err)
			}
			if sess.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", sess.DisplayName, tt.wantName)
			}
		})
	}
}

func TestSelectRole_PatientNeverNeedsToken(t *testing.T) {
	_, authenticator := newTestAuth(t)
	h := newHarness(t, authenticator)
	sess := h.activatePatient(t, "Alice", "555-1111")
	if !sess.Active() {
		t.Fatalf("patient not active: %+v", sess)
	}
}
