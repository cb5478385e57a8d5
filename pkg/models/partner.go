package models

import "time"

// PartnerType represents the kind of commercial partner
type PartnerType string

const (
	PartnerTypeClinic   PartnerType = "clinic"
	PartnerTypePharmacy PartnerType = "pharmacy"
	PartnerTypeInsurer  PartnerType = "insurer"
	PartnerTypeOther    PartnerType = "other"
)

// Partner represents a document in the "partners" collection.
// Discounts live embedded in the partner document, in stored order.
type Partner struct {
	ID        string      `bson:"_id" json:"id"`
	Name      string      `bson:"name" json:"name"`
	Type      PartnerType `bson:"type" json:"type"`
	Logo      string      `bson:"logo" json:"logo"`
	IsActive  bool        `bson:"isActive" json:"isActive"`
	Discounts []Discount  `bson:"discounts" json:"discounts"`
}

// Discount is a single offer scoped to one partner.
// The ID is unique within its partner, not globally.
type Discount struct {
	ID               string  `bson:"id" json:"id"`
	Name             string  `bson:"name" json:"name"`
	Category         string  `bson:"category" json:"category"`
	PercentValue     float64 `bson:"percentValue" json:"percentValue"`
	EstimatedSavings float64 `bson:"estimatedSavings" json:"estimatedSavings"`
	Location         string  `bson:"location,omitempty" json:"location,omitempty"` // pista de localidad, texto libre
}

// CatalogDiscount is the denormalized catalog projection: a discount
// with its partner's display fields merged on for filtering and render.
type CatalogDiscount struct {
	Discount

	PartnerID   string      `json:"partnerId"`
	PartnerName string      `json:"partnerName"`
	PartnerType PartnerType `json:"partnerType"`
	PartnerLogo string      `json:"partnerLogo"`
}

// UserDiscount represents a document in the "userDiscounts" collection:
// one user's claim over one partner discount. Claims are never deleted;
// the only transition is unused -> used.
type UserDiscount struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	UserID     string     `bson:"userId" json:"userId"`
	DiscountID string     `bson:"discountId" json:"discountId"`
	PartnerID  string     `bson:"partnerId" json:"partnerId"`
	ClaimedAt  time.Time  `bson:"claimedAt" json:"claimedAt"`
	IsUsed     bool       `bson:"isUsed" json:"isUsed"`
	UsedAt     *time.Time `bson:"usedAt" json:"usedAt"`
}

// PremiumStats summarizes a premium user's claim activity
type PremiumStats struct {
	TotalClaimed     int     `json:"totalClaimed"`
	TotalUsed        int     `json:"totalUsed"`
	TotalAvailable   int     `json:"totalAvailable"`
	EstimatedSavings float64 `json:"estimatedSavings"`
}
