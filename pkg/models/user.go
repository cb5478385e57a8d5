package models

import "time"

// UserProfile represents a document in the "users" collection.
// The identity provider owns the UID; everything else is profile data.
type UserProfile struct {
	UID       string    `bson:"uid" json:"uid"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Phone     string    `bson:"phone" json:"phone"`
	Address   string    `bson:"address" json:"address"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`

	// Suscripción premium. PremiumExpiry nil con IsPremium activo
	// significa premium sin vencimiento.
	IsPremium          bool       `bson:"isPremium" json:"isPremium"`
	PremiumExpiry      *time.Time `bson:"premiumExpiry" json:"premiumExpiry"`
	PremiumActivatedAt *time.Time `bson:"premiumActivatedAt,omitempty" json:"premiumActivatedAt,omitempty"`
}
