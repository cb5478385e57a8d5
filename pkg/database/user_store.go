package database

import (
	"context"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

// UserStore handles profile documents in the users collection
type UserStore struct {
	db *Database
}

// NewUserStore creates a UserStore over an established connection
func NewUserStore(db *Database) *UserStore {
	return &UserStore{db: db}
}

// GetProfile returns a user's profile document, or nil if it does not exist
func (s *UserStore) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if GlobalUserDM == nil {
		return nil, ErrStoreNotInitialized
	}
	return GlobalUserDM.Get(bson.M{"uid": uid})
}

// EnsureProfile returns the existing profile or creates a fresh one for
// a newly registered identity (premium off, no expiry).
func (s *UserStore) EnsureProfile(ctx context.Context, uid, email, name string) (*models.UserProfile, error) {
	profile, err := s.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	fresh := models.UserProfile{
		UID:           uid,
		Email:         email,
		Name:          name,
		CreatedAt:     time.Now(),
		IsPremium:     false,
		PremiumExpiry: nil,
	}

	return GlobalUserDM.Set(bson.M{"uid": uid}, fresh)
}

// UpdateProfile merges partial profile fields into the stored document
func (s *UserStore) UpdateProfile(ctx context.Context, uid string, fields map[string]interface{}) (*models.UserProfile, error) {
	if GlobalUserDM == nil {
		return nil, ErrStoreNotInitialized
	}

	update := bson.M{}
	for k, v := range fields {
		update[k] = v
	}

	return GlobalUserDM.Set(bson.M{"uid": uid}, update)
}
