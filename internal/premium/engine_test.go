package premium

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/database"
	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"github.com/HuellitasApp/HuellitasGo/pkg/session"
)

type fakeStore struct {
	partners []models.Partner
	claims   []models.UserDiscount

	createCalls   int
	markUsedCalls int
	activateCalls int

	failPartners bool
	failCreate   bool
	failActivate bool
}

func (f *fakeStore) ActivePartners(ctx context.Context) ([]models.Partner, error) {
	if f.failPartners {
		return nil, errors.New("sin conexión")
	}
	return f.partners, nil
}

func (f *fakeStore) UserClaims(ctx context.Context, userID string) ([]models.UserDiscount, error) {
	var out []models.UserDiscount
	for _, c := range f.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateClaim(ctx context.Context, claim models.UserDiscount) error {
	f.createCalls++
	if f.failCreate {
		return errors.New("escritura rechazada")
	}
	claim.ID = fmt.Sprintf("claim-%d", f.createCalls)
	claim.ClaimedAt = time.Now()
	f.claims = append(f.claims, claim)
	return nil
}

func (f *fakeStore) MarkClaimUsed(ctx context.Context, claimID string, usedAt time.Time) error {
	f.markUsedCalls++
	for i := range f.claims {
		if f.claims[i].ID == claimID {
			f.claims[i].IsUsed = true
			t := usedAt
			f.claims[i].UsedAt = &t
			return nil
		}
	}
	return errors.New("claim no encontrado")
}

func (f *fakeStore) ActivatePremium(ctx context.Context, userID string, expiry, activatedAt time.Time) error {
	f.activateCalls++
	if f.failActivate {
		return errors.New("escritura rechazada")
	}
	return nil
}

func samplePartners() []models.Partner {
	return []models.Partner{
		{
			ID:       "vet-central",
			Name:     "Veterinaria Central",
			Type:     models.PartnerTypeClinic,
			IsActive: true,
			Discounts: []models.Discount{
				{ID: "d1", Name: "Consulta general", Category: "salud", PercentValue: 20, EstimatedSavings: 5000, Location: "Providencia, Santiago"},
				{ID: "d2", Name: "Vacuna anual", Category: "salud", PercentValue: 15, EstimatedSavings: 3000, Location: "Maipú"},
			},
		},
		{
			ID:       "petshop-sur",
			Name:     "PetShop Sur",
			Type:     models.PartnerTypeOther,
			IsActive: true,
			Discounts: []models.Discount{
				{ID: "d1", Name: "Alimento premium", Category: "alimentos", PercentValue: 10, EstimatedSavings: 2500},
			},
		},
	}
}

func premiumSession(uid string) *session.Session {
	sess := session.New()
	now := time.Now()
	expiry := now.AddDate(1, 0, 0)
	sess.SignIn(session.User{UID: uid, Email: uid + "@example.com"}, models.UserProfile{
		UID:                uid,
		Email:              uid + "@example.com",
		IsPremium:          true,
		PremiumExpiry:      &expiry,
		PremiumActivatedAt: &now,
	})
	return sess
}

func freeSession(uid string) *session.Session {
	sess := session.New()
	sess.SignIn(session.User{UID: uid}, models.UserProfile{UID: uid})
	return sess
}

func TestIsPremiumActive(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	past := time.Now().Add(-48 * time.Hour)

	cases := []struct {
		name    string
		profile *models.UserProfile
		want    bool
	}{
		{"nil profile", nil, false},
		{"not premium", &models.UserProfile{}, false},
		{"not premium with future expiry", &models.UserProfile{PremiumExpiry: &future}, false},
		{"premium without expiry", &models.UserProfile{IsPremium: true}, true},
		{"premium future expiry", &models.UserProfile{IsPremium: true, PremiumExpiry: &future}, true},
		{"premium expired", &models.UserProfile{IsPremium: true, PremiumExpiry: &past}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPremiumActive(tc.profile); got != tc.want {
				t.Errorf("IsPremiumActive() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	t.Run("rounds up partial days", func(t *testing.T) {
		expiry := time.Now().Add(36 * time.Hour)
		days, ok := DaysUntilExpiry(&models.UserProfile{IsPremium: true, PremiumExpiry: &expiry})
		if !ok {
			t.Fatal("expected ok")
		}
		if days != 2 {
			t.Errorf("days = %d, want 2", days)
		}
	})

	t.Run("expired floors at zero", func(t *testing.T) {
		expiry := time.Now().Add(-72 * time.Hour)
		days, ok := DaysUntilExpiry(&models.UserProfile{IsPremium: true, PremiumExpiry: &expiry})
		if !ok {
			t.Fatal("expected ok")
		}
		if days != 0 {
			t.Errorf("days = %d, want 0", days)
		}
	})

	t.Run("no expiry means not ok", func(t *testing.T) {
		if _, ok := DaysUntilExpiry(&models.UserProfile{IsPremium: true}); ok {
			t.Error("expected not ok for missing expiry")
		}
	})

	t.Run("not premium means not ok", func(t *testing.T) {
		expiry := time.Now().Add(24 * time.Hour)
		if _, ok := DaysUntilExpiry(&models.UserProfile{PremiumExpiry: &expiry}); ok {
			t.Error("expected not ok for non-premium profile")
		}
		if _, ok := DaysUntilExpiry(nil); ok {
			t.Error("expected not ok for nil profile")
		}
	})
}

func TestLoadPartnersBuildsCatalog(t *testing.T) {
	store := &fakeStore{partners: samplePartners()}
	e := NewEngine(store, premiumSession("u1"), nil)

	if err := e.LoadPartners(context.Background()); err != nil {
		t.Fatalf("LoadPartners: %v", err)
	}

	catalog := e.Discounts()
	if len(catalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(catalog))
	}

	first := catalog[0]
	if first.ID != "d1" || first.PartnerID != "vet-central" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.PartnerName != "Veterinaria Central" || first.PartnerType != models.PartnerTypeClinic {
		t.Errorf("partner fields not denormalized: %+v", first)
	}

	// Una recarga reconstruye el catálogo completo desde cero
	store.partners = store.partners[:1]
	if err := e.LoadPartners(context.Background()); err != nil {
		t.Fatalf("LoadPartners: %v", err)
	}
	if got := len(e.Discounts()); got != 2 {
		t.Errorf("catalog size after reload = %d, want 2", got)
	}
}

func TestClaimDiscount(t *testing.T) {
	store := &fakeStore{partners: samplePartners()}
	e := NewEngine(store, premiumSession("u1"), nil)

	if err := e.ClaimDiscount(context.Background(), "d1", "vet-central"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if got := len(e.UserDiscounts()); got != 1 {
		t.Fatalf("claims = %d, want 1", got)
	}

	err := e.ClaimDiscount(context.Background(), "d1", "vet-central")
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if got := len(e.UserDiscounts()); got != 1 {
		t.Errorf("claims after duplicate = %d, want 1", got)
	}
	if store.createCalls != 1 {
		t.Errorf("store writes = %d, want 1", store.createCalls)
	}

	// Mismo id de descuento en otro aliado es un canje distinto
	if err := e.ClaimDiscount(context.Background(), "d1", "petshop-sur"); err != nil {
		t.Fatalf("claim on other partner: %v", err)
	}
	if got := len(e.UserDiscounts()); got != 2 {
		t.Errorf("claims = %d, want 2", got)
	}
}

func TestClaimDiscountRequiresActivePremium(t *testing.T) {
	t.Run("free user", func(t *testing.T) {
		store := &fakeStore{}
		e := NewEngine(store, freeSession("u1"), nil)

		err := e.ClaimDiscount(context.Background(), "d1", "vet-central")
		if !errors.Is(err, ErrPremiumRequired) {
			t.Fatalf("err = %v, want ErrPremiumRequired", err)
		}
		if store.createCalls != 0 {
			t.Errorf("store writes = %d, want 0", store.createCalls)
		}
		if got := len(e.UserDiscounts()); got != 0 {
			t.Errorf("claims = %d, want 0", got)
		}
	})

	t.Run("expired subscription", func(t *testing.T) {
		sess := session.New()
		past := time.Now().Add(-time.Hour)
		sess.SignIn(session.User{UID: "u2"}, models.UserProfile{UID: "u2", IsPremium: true, PremiumExpiry: &past})

		store := &fakeStore{}
		e := NewEngine(store, sess, nil)

		if err := e.ClaimDiscount(context.Background(), "d1", "vet-central"); !errors.Is(err, ErrPremiumRequired) {
			t.Fatalf("err = %v, want ErrPremiumRequired", err)
		}
		if store.createCalls != 0 {
			t.Errorf("store writes = %d, want 0", store.createCalls)
		}
	})

	t.Run("no session", func(t *testing.T) {
		store := &fakeStore{}
		e := NewEngine(store, session.New(), nil)

		if err := e.ClaimDiscount(context.Background(), "d1", "vet-central"); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("err = %v, want ErrNotAuthenticated", err)
		}
	})
}

func TestClaimDiscountStoreFailureLeavesStateUntouched(t *testing.T) {
	store := &fakeStore{failCreate: true}
	e := NewEngine(store, premiumSession("u1"), nil)

	if err := e.ClaimDiscount(context.Background(), "d1", "vet-central"); err == nil {
		t.Fatal("expected error")
	}
	if got := len(e.UserDiscounts()); got != 0 {
		t.Errorf("claims after failed write = %d, want 0", got)
	}
}

// A claim over a database that never connected must fail outright
// instead of reporting success with nothing persisted.
func TestClaimDiscountOfflineDatabaseFails(t *testing.T) {
	db := database.NewDatabase()
	database.InitGlobalDataManagers(db)
	store := database.NewPremiumStore(db)

	e := NewEngine(store, premiumSession("u1"), nil)

	err := e.ClaimDiscount(context.Background(), "d1", "vet-central")
	if !errors.Is(err, database.ErrNotConnected) {
		t.Fatalf("ClaimDiscount sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if got := len(e.UserDiscounts()); got != 0 {
		t.Errorf("claims after offline claim = %d, want 0", got)
	}
}

// Premium activation over a disconnected database must not flip the
// session profile.
func TestActivatePremiumOfflineDatabaseFails(t *testing.T) {
	db := database.NewDatabase()
	database.InitGlobalDataManagers(db)
	store := database.NewPremiumStore(db)

	sess := freeSession("u1")
	e := NewEngine(store, sess, nil)

	err := e.ActivatePremium(context.Background())
	if !errors.Is(err, database.ErrNotConnected) {
		t.Fatalf("ActivatePremium sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if p := sess.Profile(); p != nil && p.IsPremium {
		t.Error("profile flipped to premium without a confirmed write")
	}
}

func TestMarkDiscountUsed(t *testing.T) {
	store := &fakeStore{
		claims: []models.UserDiscount{
			{ID: "c1", UserID: "u1", DiscountID: "d1", PartnerID: "vet-central", ClaimedAt: time.Now()},
			{ID: "c2", UserID: "u1", DiscountID: "d2", PartnerID: "vet-central", ClaimedAt: time.Now()},
		},
	}
	e := NewEngine(store, premiumSession("u1"), nil)
	if err := e.LoadUserClaims(context.Background()); err != nil {
		t.Fatalf("LoadUserClaims: %v", err)
	}

	before := e.Stats()
	if before == nil {
		t.Fatal("expected stats for premium user")
	}
	if before.TotalUsed != 0 || before.TotalAvailable != 2 {
		t.Fatalf("unexpected initial stats: %+v", before)
	}

	if err := e.MarkDiscountUsed(context.Background(), "c1"); err != nil {
		t.Fatalf("MarkDiscountUsed: %v", err)
	}

	after := e.Stats()
	if after.TotalUsed != before.TotalUsed+1 {
		t.Errorf("totalUsed = %d, want %d", after.TotalUsed, before.TotalUsed+1)
	}
	if after.TotalAvailable != before.TotalAvailable-1 {
		t.Errorf("totalAvailable = %d, want %d", after.TotalAvailable, before.TotalAvailable-1)
	}
	if after.TotalClaimed != before.TotalClaimed {
		t.Errorf("totalClaimed changed: %d -> %d", before.TotalClaimed, after.TotalClaimed)
	}

	for _, ud := range e.UserDiscounts() {
		if ud.ID == "c1" {
			if !ud.IsUsed || ud.UsedAt == nil {
				t.Errorf("claim c1 not marked locally: %+v", ud)
			}
		}
	}
}

func TestStatsSavingsCountOnlyUsedClaims(t *testing.T) {
	store := &fakeStore{
		partners: samplePartners(),
		claims: []models.UserDiscount{
			{ID: "c1", UserID: "u1", DiscountID: "d1", PartnerID: "vet-central"},
			{ID: "c2", UserID: "u1", DiscountID: "d2", PartnerID: "vet-central"},
		},
	}
	e := NewEngine(store, premiumSession("u1"), nil)
	if err := e.LoadPartners(context.Background()); err != nil {
		t.Fatalf("LoadPartners: %v", err)
	}
	if err := e.LoadUserClaims(context.Background()); err != nil {
		t.Fatalf("LoadUserClaims: %v", err)
	}

	if s := e.Stats(); s.EstimatedSavings != 0 {
		t.Errorf("savings with no used claims = %v, want 0", s.EstimatedSavings)
	}

	if err := e.MarkDiscountUsed(context.Background(), "c1"); err != nil {
		t.Fatalf("MarkDiscountUsed: %v", err)
	}

	if s := e.Stats(); s.EstimatedSavings != 5000 {
		t.Errorf("savings = %v, want 5000", s.EstimatedSavings)
	}
}

func TestStatsClaimOfVanishedDiscountContributesZero(t *testing.T) {
	used := time.Now()
	store := &fakeStore{
		partners: samplePartners(),
		claims: []models.UserDiscount{
			{ID: "c1", UserID: "u1", DiscountID: "retired", PartnerID: "vet-central", IsUsed: true, UsedAt: &used},
		},
	}
	e := NewEngine(store, premiumSession("u1"), nil)
	if err := e.LoadPartners(context.Background()); err != nil {
		t.Fatalf("LoadPartners: %v", err)
	}
	if err := e.LoadUserClaims(context.Background()); err != nil {
		t.Fatalf("LoadUserClaims: %v", err)
	}

	s := e.Stats()
	if s.TotalUsed != 1 {
		t.Errorf("totalUsed = %d, want 1", s.TotalUsed)
	}
	if s.EstimatedSavings != 0 {
		t.Errorf("savings = %v, want 0 for retired discount", s.EstimatedSavings)
	}
}

func TestStatsNilForNonPremium(t *testing.T) {
	e := NewEngine(&fakeStore{}, freeSession("u1"), nil)
	if s := e.Stats(); s != nil {
		t.Errorf("stats = %+v, want nil", s)
	}

	e = NewEngine(&fakeStore{}, session.New(), nil)
	if s := e.Stats(); s != nil {
		t.Errorf("stats without session = %+v, want nil", s)
	}
}

func TestActivatePremium(t *testing.T) {
	sess := freeSession("u1")
	store := &fakeStore{}
	e := NewEngine(store, sess, nil)

	if err := e.ActivatePremium(context.Background()); err != nil {
		t.Fatalf("ActivatePremium: %v", err)
	}

	profile := sess.Profile()
	if profile == nil || !profile.IsPremium {
		t.Fatal("profile not premium after activation")
	}
	if profile.PremiumExpiry == nil {
		t.Fatal("expiry not set")
	}

	want := time.Now().AddDate(1, 0, 0)
	if diff := profile.PremiumExpiry.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry = %v, want about %v", profile.PremiumExpiry, want)
	}
	if !IsPremiumActive(profile) {
		t.Error("profile should be active after activation")
	}
}

func TestActivatePremiumFailureKeepsProfile(t *testing.T) {
	sess := freeSession("u1")
	e := NewEngine(&fakeStore{failActivate: true}, sess, nil)

	if err := e.ActivatePremium(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if profile := sess.Profile(); profile.IsPremium {
		t.Error("profile flipped premium despite failed write")
	}
}

func TestActivatePremiumWithoutSession(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, session.New(), nil)

	if err := e.ActivatePremium(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if store.activateCalls != 0 {
		t.Errorf("store writes = %d, want 0", store.activateCalls)
	}
}

func TestFilterByCategory(t *testing.T) {
	catalog := buildCatalog(samplePartners())

	if got := FilterByCategory(catalog, "all"); len(got) != len(catalog) {
		t.Errorf("\"all\" filtered to %d, want %d", len(got), len(catalog))
	}
	if got := FilterByCategory(catalog, ""); len(got) != len(catalog) {
		t.Errorf("empty category filtered to %d, want %d", len(got), len(catalog))
	}

	health := FilterByCategory(catalog, "salud")
	if len(health) != 2 {
		t.Fatalf("salud = %d entries, want 2", len(health))
	}
	for _, d := range health {
		if d.Category != "salud" {
			t.Errorf("unexpected category %q", d.Category)
		}
	}

	if got := FilterByCategory(catalog, "peluqueria"); len(got) != 0 {
		t.Errorf("unknown category = %d entries, want 0", len(got))
	}
}

func TestFilterByLocation(t *testing.T) {
	catalog := buildCatalog(samplePartners())

	got := FilterByLocation(catalog, "providencia")
	var names []string
	for _, d := range got {
		names = append(names, d.Name)
	}
	// Coincide "Providencia, Santiago" y el descuento sin localidad
	if len(got) != 2 {
		t.Fatalf("providencia = %v, want 2 entries", names)
	}
	for _, d := range got {
		if d.Location == "Maipú" {
			t.Errorf("Maipú should not match providencia")
		}
	}

	if got := FilterByLocation(catalog, ""); len(got) != len(catalog) {
		t.Errorf("empty hint filtered to %d, want %d", len(got), len(catalog))
	}
}

func TestFullPremiumScenario(t *testing.T) {
	sess := freeSession("u1")
	store := &fakeStore{partners: samplePartners()}
	e := NewEngine(store, sess, nil)

	if err := e.LoadPartners(context.Background()); err != nil {
		t.Fatalf("LoadPartners: %v", err)
	}
	if err := e.ActivatePremium(context.Background()); err != nil {
		t.Fatalf("ActivatePremium: %v", err)
	}
	if err := e.ClaimDiscount(context.Background(), "d1", "vet-central"); err != nil {
		t.Fatalf("ClaimDiscount: %v", err)
	}

	// Recargar para cambiar el id provisional por el id real
	if err := e.LoadUserClaims(context.Background()); err != nil {
		t.Fatalf("LoadUserClaims: %v", err)
	}
	claims := e.UserDiscounts()
	if len(claims) != 1 {
		t.Fatalf("claims = %d, want 1", len(claims))
	}
	if err := e.MarkDiscountUsed(context.Background(), claims[0].ID); err != nil {
		t.Fatalf("MarkDiscountUsed: %v", err)
	}

	s := e.Stats()
	if s == nil {
		t.Fatal("expected stats")
	}
	if s.TotalClaimed != 1 || s.TotalUsed != 1 || s.TotalAvailable != 0 || s.EstimatedSavings != 5000 {
		t.Errorf("stats = %+v, want {1 1 0 5000}", s)
	}
}

func TestSignOutClearsClaims(t *testing.T) {
	sess := premiumSession("u1")
	store := &fakeStore{
		claims: []models.UserDiscount{{ID: "c1", UserID: "u1", DiscountID: "d1", PartnerID: "vet-central"}},
	}
	e := NewEngine(store, sess, nil)
	if err := e.LoadUserClaims(context.Background()); err != nil {
		t.Fatalf("LoadUserClaims: %v", err)
	}
	if got := len(e.UserDiscounts()); got != 1 {
		t.Fatalf("claims = %d, want 1", got)
	}

	sess.SignOut()

	if got := len(e.UserDiscounts()); got != 0 {
		t.Errorf("claims after sign out = %d, want 0", got)
	}
}
