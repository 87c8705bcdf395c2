package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	id := uuid.New()

	tok, err := svc.Generate(id, "mc@example.com", []string{"mc", "member"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.Validate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != id {
		t.Errorf("expected user %s, got %s", id, claims.UserID)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "mc" {
		t.Errorf("unexpected roles %v", claims.Roles)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	tok, err := NewJWTService("one", 1).Generate(uuid.New(), "a@example.com", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("two", 1).Validate(tok); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", -1)
	tok, err := svc.Generate(uuid.New(), "a@example.com", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Validate(tok); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestRoleSetIntersects(t *testing.T) {
	leaders := NewRoleSet("pastor", " Leader ", "cell_leader")

	cases := []struct {
		roles []string
		want  bool
	}{
		{[]string{"member"}, false},
		{nil, false},
		{[]string{"member", "LEADER"}, true},
		{[]string{"cell_leader"}, true},
	}
	for _, tc := range cases {
		if got := leaders.Intersects(tc.roles); got != tc.want {
			t.Errorf("Intersects(%v) = %v, want %v", tc.roles, got, tc.want)
		}
	}
}
