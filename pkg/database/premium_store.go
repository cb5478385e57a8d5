// Package database provides the premium store over the partners,
// userDiscounts and users collections.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrStoreNotInitialized = errors.New("data managers not initialized")
	ErrNotConnected        = errors.New("database not connected")
	ErrClaimNotFound       = errors.New("descuento canjeado no encontrado")
	ErrProfileNotFound     = errors.New("perfil de usuario no encontrado")
)

// PremiumStore is the remote data client for the premium engine.
// Ordered reads go straight to the collections; point writes go through
// the cached DataManagers.
type PremiumStore struct {
	db *Database
}

// NewPremiumStore creates a PremiumStore over an established connection
func NewPremiumStore(db *Database) *PremiumStore {
	return &PremiumStore{db: db}
}

// ActivePartners returns all active partners ordered by name, with a
// stable secondary order by id.
func (s *PremiumStore) ActivePartners(ctx context.Context) ([]models.Partner, error) {
	col := s.db.GetCollection(CollectionPartners)
	if col == nil || !s.db.Connected() {
		return nil, ErrNotConnected
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "name", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := col.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var partners []models.Partner
	for cursor.Next(ctx) {
		var p models.Partner
		if err := cursor.Decode(&p); err != nil {
			continue
		}
		partners = append(partners, p)
	}

	return partners, cursor.Err()
}

// UserClaims returns all of a user's discount claims, most recent first
func (s *PremiumStore) UserClaims(ctx context.Context, userID string) ([]models.UserDiscount, error) {
	col := s.db.GetCollection(CollectionUserDiscounts)
	if col == nil || !s.db.Connected() {
		return nil, ErrNotConnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "claimedAt", Value: -1}})

	cursor, err := col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var claims []models.UserDiscount
	for cursor.Next(ctx) {
		var c models.UserDiscount
		if err := cursor.Decode(&c); err != nil {
			continue
		}
		claims = append(claims, c)
	}

	return claims, cursor.Err()
}

// CreateClaim persists a new claim document. The store assigns the id
// and the claimedAt timestamp; there is no uniqueness constraint on the
// (userId, discountId, partnerId) tuple at this level.
// Claims are never queued offline: the caller updates its projection
// only after a confirmed write, so an unconfirmed claim must fail.
func (s *PremiumStore) CreateClaim(ctx context.Context, claim models.UserDiscount) error {
	if GlobalUserDiscountDM == nil {
		return ErrStoreNotInitialized
	}
	if !s.db.Connected() {
		return ErrNotConnected
	}

	claim.ID = uuid.NewString()
	claim.ClaimedAt = time.Now()

	_, err := GlobalUserDiscountDM.Set(bson.M{"_id": claim.ID}, claim)
	return err
}

// MarkClaimUsed flips a claim to used and stamps usedAt. A claim that is
// already used is simply re-stamped.
func (s *PremiumStore) MarkClaimUsed(ctx context.Context, claimID string, usedAt time.Time) error {
	col := s.db.GetCollection(CollectionUserDiscounts)
	if col == nil || !s.db.Connected() {
		return ErrNotConnected
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": claimID}, bson.M{"$set": bson.M{
		"isUsed": true,
		"usedAt": usedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrClaimNotFound
	}
	return nil
}

// ActivatePremium marks a user profile as premium with the given expiry.
// Never queued offline: the session only flips premium on confirmed writes.
func (s *PremiumStore) ActivatePremium(ctx context.Context, userID string, expiry, activatedAt time.Time) error {
	if GlobalUserDM == nil {
		return ErrStoreNotInitialized
	}
	if !s.db.Connected() {
		return ErrNotConnected
	}

	_, err := GlobalUserDM.Set(bson.M{"uid": userID}, bson.M{
		"isPremium":          true,
		"premiumExpiry":      expiry,
		"premiumActivatedAt": activatedAt,
	})
	return err
}
