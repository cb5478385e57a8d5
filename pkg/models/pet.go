package models

import "time"

// Pet represents a document in the "pets" collection. Medical history
// (vaccines, diseases, treatments, documents) is embedded as arrays and
// listed in array order.
type Pet struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	Name      string    `bson:"name" json:"name"`
	Species   string    `bson:"species" json:"species"`
	Breed     string    `bson:"breed" json:"breed"`
	Weight    float64   `bson:"weight,omitempty" json:"weight,omitempty"`
	PhotoURL  string    `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	Vaccines   []Vaccine     `bson:"vaccines,omitempty" json:"vaccines,omitempty"`
	Diseases   []Disease     `bson:"diseases,omitempty" json:"diseases,omitempty"`
	Treatments []Treatment   `bson:"treatments,omitempty" json:"treatments,omitempty"`
	Documents  []PetDocument `bson:"documents,omitempty" json:"documents,omitempty"`
}

// Vaccine es una vacuna aplicada, con próxima dosis opcional
type Vaccine struct {
	ID       string     `bson:"id" json:"id"`
	Name     string     `bson:"name" json:"name"`
	Date     time.Time  `bson:"date" json:"date"`
	NextDose *time.Time `bson:"nextDose" json:"nextDose"`
	Vet      string     `bson:"vet,omitempty" json:"vet,omitempty"`
}

// Disease es una enfermedad diagnosticada
type Disease struct {
	ID            string    `bson:"id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	DiagnosisDate time.Time `bson:"diagnosisDate" json:"diagnosisDate"`
	Notes         string    `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Treatment es un tratamiento en curso o finalizado
type Treatment struct {
	ID        string     `bson:"id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	StartDate time.Time  `bson:"startDate" json:"startDate"`
	EndDate   *time.Time `bson:"endDate" json:"endDate"`
	Notes     string     `bson:"notes,omitempty" json:"notes,omitempty"`
}

// PetDocument is a file attached to a pet (exam results, certificates).
// URL points into blob storage; deleting the record deletes the blob.
type PetDocument struct {
	ID         string    `bson:"id" json:"id"`
	Name       string    `bson:"name" json:"name"`
	Type       string    `bson:"type" json:"type"`
	URL        string    `bson:"url" json:"url"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
	Size       int64     `bson:"size" json:"size"`
}

// UpcomingVaccine is the dashboard projection of a vaccine whose next
// dose falls inside the reminder window.
type UpcomingVaccine struct {
	PetID       string    `json:"petId"`
	PetName     string    `json:"petName"`
	VaccineName string    `json:"vaccineName"`
	NextDose    time.Time `json:"nextDose"`
	DaysUntil   int       `json:"daysUntil"`
}
