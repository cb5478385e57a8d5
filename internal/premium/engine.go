// Package premium implements the discount marketplace engine: subscription
// validity, the denormalized partner discount catalog, claim invariants and
// savings statistics for the signed-in user.
package premium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"github.com/HuellitasApp/HuellitasGo/pkg/notify"
	"github.com/HuellitasApp/HuellitasGo/pkg/session"
)

var (
	ErrNotAuthenticated = errors.New("necesitas iniciar sesión")
	ErrPremiumRequired  = errors.New("necesitas una suscripción premium para canjear descuentos")
	ErrAlreadyClaimed   = errors.New("ya has canjeado este descuento")
)

// Store is the remote data client the engine writes through. It owns
// durable storage; the engine owns the in-memory projections.
type Store interface {
	ActivePartners(ctx context.Context) ([]models.Partner, error)
	UserClaims(ctx context.Context, userID string) ([]models.UserDiscount, error)
	CreateClaim(ctx context.Context, claim models.UserDiscount) error
	MarkClaimUsed(ctx context.Context, claimID string, usedAt time.Time) error
	ActivatePremium(ctx context.Context, userID string, expiry, activatedAt time.Time) error
}

// Engine owns the partners, discounts and userDiscounts projections for
// the lifetime of a session. The presentation layer only reads them;
// every mutation happens here, after the corresponding remote write has
// been confirmed.
type Engine struct {
	store    Store
	session  *session.Session
	notifier notify.Notifier

	mu            sync.RWMutex
	partners      []models.Partner
	discounts     []models.CatalogDiscount
	userDiscounts []models.UserDiscount
	loading       bool
}

// NewEngine creates an engine bound to a session. It subscribes to the
// session's change notifications to reload or clear the claim list.
func NewEngine(store Store, sess *session.Session, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}

	e := &Engine{
		store:    store,
		session:  sess,
		notifier: notifier,
	}

	sess.OnChange(e.onSessionChange)

	return e
}

// onSessionChange reloads the claim list for the new identity, or clears
// it when the session closed.
func (e *Engine) onSessionChange() {
	if e.session.User() == nil {
		e.mu.Lock()
		e.userDiscounts = nil
		e.mu.Unlock()
		return
	}

	if err := e.LoadUserClaims(context.Background()); err != nil {
		logger.Error(fmt.Sprintf("Error al cargar descuentos del usuario: %v", err), "Premium")
	}
}

// Subscription validity

// IsPremiumActive reports whether a profile's subscription is valid
// right now. A premium profile without expiry never expires; a profile
// that is not premium is never active, whatever its expiry says.
func IsPremiumActive(profile *models.UserProfile) bool {
	if profile == nil || !profile.IsPremium {
		return false
	}
	if profile.PremiumExpiry == nil {
		return true
	}
	return profile.PremiumExpiry.After(time.Now())
}

// DaysUntilExpiry returns the remaining subscription days, rounded up
// and floored at zero. ok is false when the profile is not premium or
// has no expiry set.
func DaysUntilExpiry(profile *models.UserProfile) (days int, ok bool) {
	if profile == nil || !profile.IsPremium || profile.PremiumExpiry == nil {
		return 0, false
	}

	diff := time.Until(*profile.PremiumExpiry)
	days = int(math.Ceil(diff.Hours() / 24))
	if days < 0 {
		days = 0
	}
	return days, true
}

// IsPremiumActive evaluates the session's cached profile
func (e *Engine) IsPremiumActive() bool {
	return IsPremiumActive(e.session.Profile())
}

// DaysUntilExpiry evaluates the session's cached profile
func (e *Engine) DaysUntilExpiry() (int, bool) {
	return DaysUntilExpiry(e.session.Profile())
}

// ActivatePremium subscribes the signed-in user for one year. The local
// profile and claim list are only touched after the remote write has
// been confirmed; on failure nothing local changes.
func (e *Engine) ActivatePremium(ctx context.Context) error {
	user := e.session.User()
	if user == nil {
		e.notifier.Error("Necesitas iniciar sesión para activar premium")
		return ErrNotAuthenticated
	}

	now := time.Now()
	expiry := now.AddDate(1, 0, 0) // 1 año de suscripción

	if err := e.store.ActivatePremium(ctx, user.UID, expiry, now); err != nil {
		logger.Error(fmt.Sprintf("Error al activar premium: %v", err), "Premium")
		e.notifier.Error("Error al activar suscripción premium")
		return err
	}

	e.session.SetPremium(expiry, now)
	e.notifier.Success("¡Suscripción Premium activada!")

	// Recargar descuentos del usuario
	if err := e.LoadUserClaims(ctx); err != nil {
		logger.Warn(fmt.Sprintf("Premium activado pero la recarga de descuentos falló: %v", err), "Premium")
	}

	return nil
}

// Catalog aggregation

// LoadPartners fetches all active partners and rebuilds the flattened,
// denormalized discount catalog from scratch. The catalog is never
// maintained incrementally.
func (e *Engine) LoadPartners(ctx context.Context) error {
	e.setLoading(true)
	defer e.setLoading(false)

	partners, err := e.store.ActivePartners(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("Error al cargar aliados: %v", err), "Premium")
		e.notifier.Error("Error al cargar aliados comerciales")
		return err
	}

	catalog := buildCatalog(partners)

	e.mu.Lock()
	e.partners = partners
	e.discounts = catalog
	e.mu.Unlock()

	logger.Info(fmt.Sprintf("Catálogo cargado: %d aliados, %d descuentos", len(partners), len(catalog)), "Premium")
	return nil
}

// buildCatalog flattens every partner's embedded discounts in stored
// order, denormalizing the partner display fields onto each one.
func buildCatalog(partners []models.Partner) []models.CatalogDiscount {
	var catalog []models.CatalogDiscount
	for _, partner := range partners {
		for _, discount := range partner.Discounts {
			catalog = append(catalog, models.CatalogDiscount{
				Discount:    discount,
				PartnerID:   partner.ID,
				PartnerName: partner.Name,
				PartnerType: partner.Type,
				PartnerLogo: partner.Logo,
			})
		}
	}
	return catalog
}

// LoadUserClaims reloads the signed-in user's claims, most recent first.
// It is a no-op when there is no session or the profile is not premium.
func (e *Engine) LoadUserClaims(ctx context.Context) error {
	user := e.session.User()
	profile := e.session.Profile()
	if user == nil || profile == nil || !profile.IsPremium {
		return nil
	}

	claims, err := e.store.UserClaims(ctx, user.UID)
	if err != nil {
		logger.Error(fmt.Sprintf("Error al cargar descuentos del usuario: %v", err), "Premium")
		return err
	}

	e.mu.Lock()
	e.userDiscounts = claims
	e.mu.Unlock()

	return nil
}

// FilterByCategory returns the discounts matching a category exactly.
// An empty category or the "all" sentinel returns the input unchanged.
func FilterByCategory(discounts []models.CatalogDiscount, category string) []models.CatalogDiscount {
	if category == "" || category == "all" {
		return discounts
	}

	var out []models.CatalogDiscount
	for _, d := range discounts {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// FilterByLocation returns the discounts whose location contains the
// hint, case-insensitively. Discounts without a location always pass;
// an empty hint returns the input unchanged.
func FilterByLocation(discounts []models.CatalogDiscount, hint string) []models.CatalogDiscount {
	if hint == "" {
		return discounts
	}

	needle := strings.ToLower(hint)
	var out []models.CatalogDiscount
	for _, d := range discounts {
		if d.Location == "" {
			out = append(out, d)
			continue
		}
		if strings.Contains(strings.ToLower(d.Location), needle) {
			out = append(out, d)
		}
	}
	return out
}

// DiscountsByCategory filters the current catalog by category
func (e *Engine) DiscountsByCategory(category string) []models.CatalogDiscount {
	return FilterByCategory(e.Discounts(), category)
}

// DiscountsByLocation filters the current catalog by location hint
func (e *Engine) DiscountsByLocation(hint string) []models.CatalogDiscount {
	return FilterByLocation(e.Discounts(), hint)
}

// Claims

// ClaimDiscount claims one partner discount for the signed-in user.
// The duplicate check runs against the locally loaded claim list only,
// so two near-simultaneous sessions can still produce duplicate claims
// in storage; durable uniqueness would need a conditional write keyed
// on (userId, discountId, partnerId).
func (e *Engine) ClaimDiscount(ctx context.Context, discountID, partnerID string) error {
	user := e.session.User()
	profile := e.session.Profile()

	if user == nil || !IsPremiumActive(profile) {
		e.notifier.Error("Necesitas una suscripción premium para canjear descuentos")
		if user == nil {
			return ErrNotAuthenticated
		}
		return ErrPremiumRequired
	}

	// Verificar si ya fue canjeado
	e.mu.RLock()
	for _, ud := range e.userDiscounts {
		if ud.DiscountID == discountID && ud.PartnerID == partnerID {
			e.mu.RUnlock()
			e.notifier.Error("Ya has canjeado este descuento")
			return ErrAlreadyClaimed
		}
	}
	e.mu.RUnlock()

	claim := models.UserDiscount{
		UserID:     user.UID,
		DiscountID: discountID,
		PartnerID:  partnerID,
		IsUsed:     false,
		UsedAt:     nil,
	}

	if err := e.store.CreateClaim(ctx, claim); err != nil {
		logger.Error(fmt.Sprintf("Error al canjear descuento: %v", err), "Premium")
		e.notifier.Error("Error al canjear descuento")
		return err
	}

	// Copia local optimista con id provisional; se reconcilia con el id
	// real en la próxima recarga completa.
	local := claim
	local.ID = provisionalID()
	local.ClaimedAt = time.Now()

	e.mu.Lock()
	e.userDiscounts = append([]models.UserDiscount{local}, e.userDiscounts...)
	e.mu.Unlock()

	e.notifier.Success("Descuento canjeado exitosamente")
	return nil
}

// provisionalID builds a timestamp-based id for the optimistic local
// copy of a claim, valid only until the next reload.
func provisionalID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// MarkDiscountUsed flips one claim to used and stamps usedAt. A claim
// that is already used is simply re-stamped.
func (e *Engine) MarkDiscountUsed(ctx context.Context, claimID string) error {
	now := time.Now()

	if err := e.store.MarkClaimUsed(ctx, claimID, now); err != nil {
		logger.Error(fmt.Sprintf("Error al marcar descuento como usado: %v", err), "Premium")
		e.notifier.Error("Error al marcar descuento como usado")
		return err
	}

	e.mu.Lock()
	for i := range e.userDiscounts {
		if e.userDiscounts[i].ID == claimID {
			usedAt := now
			e.userDiscounts[i].IsUsed = true
			e.userDiscounts[i].UsedAt = &usedAt
		}
	}
	e.mu.Unlock()

	e.notifier.Success("Descuento marcado como usado")
	return nil
}

// Statistics

// Stats summarizes the user's claims. It returns nil when the profile
// is not premium. Savings count only discounts referenced by used
// claims; a claim whose discount left the catalog contributes 0.
func (e *Engine) Stats() *models.PremiumStats {
	profile := e.session.Profile()
	if profile == nil || !profile.IsPremium {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := models.PremiumStats{
		TotalClaimed: len(e.userDiscounts),
	}

	for _, ud := range e.userDiscounts {
		if !ud.IsUsed {
			continue
		}
		stats.TotalUsed++

		for _, d := range e.discounts {
			if d.ID == ud.DiscountID && d.PartnerID == ud.PartnerID {
				stats.EstimatedSavings += d.EstimatedSavings
				break
			}
		}
	}

	stats.TotalAvailable = stats.TotalClaimed - stats.TotalUsed
	return &stats
}

// Read-only accessors for the presentation layer

// Partners returns a snapshot of the loaded partners
func (e *Engine) Partners() []models.Partner {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Partner, len(e.partners))
	copy(out, e.partners)
	return out
}

// Discounts returns a snapshot of the flattened catalog
func (e *Engine) Discounts() []models.CatalogDiscount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.CatalogDiscount, len(e.discounts))
	copy(out, e.discounts)
	return out
}

// UserDiscounts returns a snapshot of the user's claim list
func (e *Engine) UserDiscounts() []models.UserDiscount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.UserDiscount, len(e.userDiscounts))
	copy(out, e.userDiscounts)
	return out
}

// Loading reports whether a catalog load is in flight
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}
