package database

import (
	"context"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PetStore is the remote data client for the pet registry
type PetStore struct {
	db *Database
}

// NewPetStore creates a PetStore over an established connection
func NewPetStore(db *Database) *PetStore {
	return &PetStore{db: db}
}

// PetsByOwner returns all pets of an owner, most recently created first
func (s *PetStore) PetsByOwner(ctx context.Context, ownerID string) ([]models.Pet, error) {
	col := s.db.GetCollection(CollectionPets)
	if col == nil || !s.db.Connected() {
		return nil, ErrNotConnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := col.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var pets []models.Pet
	for cursor.Next(ctx) {
		var p models.Pet
		if err := cursor.Decode(&p); err != nil {
			continue
		}
		pets = append(pets, p)
	}

	return pets, cursor.Err()
}

// GetPet returns a single pet document, or nil if it does not exist
func (s *PetStore) GetPet(ctx context.Context, petID string) (*models.Pet, error) {
	if GlobalPetDM == nil {
		return nil, ErrStoreNotInitialized
	}
	return GlobalPetDM.Get(bson.M{"_id": petID})
}

// CreatePet inserts a new pet document and returns it with its id set.
// Pet writes are never queued offline: the registry mirrors them into
// its projection only after a confirmed write.
func (s *PetStore) CreatePet(ctx context.Context, pet models.Pet) (*models.Pet, error) {
	if GlobalPetDM == nil {
		return nil, ErrStoreNotInitialized
	}
	if !s.db.Connected() {
		return nil, ErrNotConnected
	}
	return GlobalPetDM.Set(bson.M{"_id": pet.ID}, pet)
}

// UpdatePet replaces a pet document with the given state
func (s *PetStore) UpdatePet(ctx context.Context, petID string, pet models.Pet) error {
	if GlobalPetDM == nil {
		return ErrStoreNotInitialized
	}
	if !s.db.Connected() {
		return ErrNotConnected
	}
	_, err := GlobalPetDM.Set(bson.M{"_id": petID}, pet)
	return err
}

// DeletePet removes a pet document
func (s *PetStore) DeletePet(ctx context.Context, petID string) error {
	if GlobalPetDM == nil {
		return ErrStoreNotInitialized
	}
	if !s.db.Connected() {
		return ErrNotConnected
	}
	return GlobalPetDM.Delete(bson.M{"_id": petID})
}
