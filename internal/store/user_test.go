// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"testing"

	"github.com/google/uuid"

	"pipshop/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-create@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	user, err := s.Create(email, "testpass123", "Test User", models.RoleStaff)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if user.Email != email || user.DisplayName != "Test User" {
		t.Errorf("got %q/%q", user.Email, user.DisplayName)
	}
	if user.Role != models.RoleStaff {
		t.Errorf("role: got %q, want %q", user.Role, models.RoleStaff)
	}
	if user.TOTPEnabled {
		t.Error("expected totp_enabled=false for new user")
	}
	if user.PasswordHash == "" || user.PasswordHash == "testpass123" {
		t.Error("password hash must be set and not plaintext")
	}
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-find@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	if u, err := s.FindByEmail(email); err != nil || u != nil {
		t.Fatalf("FindByEmail before create = %v, %v; want nil, nil", u, err)
	}

	created, err := s.Create(email, "pass", "Find Me", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byEmail, err := s.FindByEmail(email)
	if err != nil || byEmail == nil || byEmail.ID != created.ID {
		t.Errorf("FindByEmail = %v, %v", byEmail, err)
	}
	byID, err := s.FindByID(created.ID)
	if err != nil || byID == nil || byID.Email != email {
		t.Errorf("FindByID = %v, %v", byID, err)
	}
	if u, _ := s.FindByID(uuid.New()); u != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestUserStoreCheckPassword(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-checkpass@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	user, _ := s.Create(email, "correct-password", "PW Check", models.RoleStaff)

	if !s.CheckPassword(user, "correct-password") {
		t.Error("expected CheckPassword to return true for correct password")
	}
	if s.CheckPassword(user, "wrong-password") {
		t.Error("expected CheckPassword to return false for wrong password")
	}
	if s.CheckPassword(user, "") {
		t.Error("expected CheckPassword to return false for empty password")
	}
}

func TestUserStoreTOTPLifecycle(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-totp@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	user, _ := s.Create(email, "pass", "TOTP User", models.RoleStaff)
	if user.TOTPSecret != nil || user.TOTPEnabled {
		t.Fatal("expected no TOTP initially")
	}

	if err := s.SetTOTPSecret(user.ID, "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret: %v", err)
	}
	user, _ = s.FindByID(user.ID)
	if user.TOTPSecret == nil || *user.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("expected TOTP secret set, got %v", user.TOTPSecret)
	}
	if user.TOTPEnabled {
		t.Error("TOTP should not be enabled yet (just set secret)")
	}

	if err := s.EnableTOTP(user.ID); err != nil {
		t.Fatalf("EnableTOTP: %v", err)
	}
	user, _ = s.FindByID(user.ID)
	if !user.TOTPEnabled {
		t.Error("expected TOTP enabled after EnableTOTP")
	}
}

func TestUserStoreDeleteAndDuplicate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-dupe@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	user, err := s.Create(email, "pass", "First", models.RoleStaff)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := s.Create(email, "pass", "Second", models.RoleStaff); err == nil {
		t.Error("expected error for duplicate email, got nil")
	}

	if err := s.Delete(user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if found, _ := s.FindByID(user.ID); found != nil {
		t.Error("expected nil after delete")
	}
}
