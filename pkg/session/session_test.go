package session

import (
	"testing"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
)

func TestSignInSignOut(t *testing.T) {
	s := New()

	if s.User() != nil {
		t.Error("nueva sesión debería estar cerrada")
	}

	changes := 0
	s.OnChange(func() { changes++ })

	s.SignIn(User{UID: "u1", Email: "u1@test.cl", Name: "Usuario"}, models.UserProfile{UID: "u1"})

	if u := s.User(); u == nil || u.UID != "u1" {
		t.Fatalf("User() = %v, want uid u1", u)
	}
	if p := s.Profile(); p == nil || p.UID != "u1" {
		t.Fatalf("Profile() = %v, want uid u1", p)
	}
	if changes != 1 {
		t.Errorf("listeners invoked %d times, want 1", changes)
	}

	s.SignOut()

	if s.User() != nil || s.Profile() != nil {
		t.Error("SignOut should clear user and profile")
	}
	if changes != 2 {
		t.Errorf("listeners invoked %d times, want 2", changes)
	}
}

func TestProfileReturnsCopy(t *testing.T) {
	s := New()
	s.SignIn(User{UID: "u1"}, models.UserProfile{UID: "u1", Name: "Original"})

	p := s.Profile()
	p.Name = "Mutado"

	if got := s.Profile().Name; got != "Original" {
		t.Errorf("Profile name = %v, want Original (el copy no debe compartir estado)", got)
	}
}

func TestSetPremium(t *testing.T) {
	s := New()

	// without a profile SetPremium is a no-op
	s.SetPremium(time.Now(), time.Now())

	s.SignIn(User{UID: "u1"}, models.UserProfile{UID: "u1"})

	expiry := time.Now().AddDate(1, 0, 0)
	activated := time.Now()
	s.SetPremium(expiry, activated)

	p := s.Profile()
	if !p.IsPremium {
		t.Error("IsPremium should be true after SetPremium")
	}
	if p.PremiumExpiry == nil || !p.PremiumExpiry.Equal(expiry) {
		t.Errorf("PremiumExpiry = %v, want %v", p.PremiumExpiry, expiry)
	}
}
