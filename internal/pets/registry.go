// Package pets implements the pet registry: the per-owner pet list with
// its embedded medical history, document attachments backed by blob
// storage, and the upcoming vaccine reminder projection.
package pets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"github.com/HuellitasApp/HuellitasGo/pkg/notify"
	"github.com/HuellitasApp/HuellitasGo/pkg/session"
)

// Reminder window for upcoming vaccine doses
const vaccineReminderWindow = 30 * 24 * time.Hour

var (
	ErrNotAuthenticated = errors.New("necesitas iniciar sesión")
	ErrPetNotFound      = errors.New("mascota no encontrada")
	ErrDocumentNotFound = errors.New("documento no encontrado")
)

// Store is the remote data client for pet documents
type Store interface {
	PetsByOwner(ctx context.Context, ownerID string) ([]models.Pet, error)
	GetPet(ctx context.Context, petID string) (*models.Pet, error)
	CreatePet(ctx context.Context, pet models.Pet) (*models.Pet, error)
	UpdatePet(ctx context.Context, petID string, pet models.Pet) error
	DeletePet(ctx context.Context, petID string) error
}

// BlobStore holds the binary attachments referenced from pet documents
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, blobURL string) error
}

// Registry owns the in-memory pet list for the signed-in owner. Remote
// writes go first; the local list only changes after they succeed.
type Registry struct {
	store    Store
	blobs    BlobStore
	session  *session.Session
	notifier notify.Notifier

	mu      sync.RWMutex
	pets    []models.Pet
	loading bool
}

// NewRegistry creates a registry bound to a session. It reloads the pet
// list on session changes and clears it on sign out.
func NewRegistry(store Store, blobs BlobStore, sess *session.Session, notifier notify.Notifier) *Registry {
	if notifier == nil {
		notifier = notify.Noop{}
	}

	r := &Registry{
		store:    store,
		blobs:    blobs,
		session:  sess,
		notifier: notifier,
	}

	sess.OnChange(r.onSessionChange)

	return r
}

func (r *Registry) onSessionChange() {
	if r.session.User() == nil {
		r.mu.Lock()
		r.pets = nil
		r.mu.Unlock()
		return
	}

	if err := r.Load(context.Background()); err != nil {
		logger.Error(fmt.Sprintf("Error al cargar mascotas: %v", err), "Pets")
	}
}

// Load fetches the owner's pets, most recently created first
func (r *Registry) Load(ctx context.Context) error {
	user := r.session.User()
	if user == nil {
		return ErrNotAuthenticated
	}

	r.setLoading(true)
	defer r.setLoading(false)

	pets, err := r.store.PetsByOwner(ctx, user.UID)
	if err != nil {
		logger.Error(fmt.Sprintf("Error al cargar mascotas: %v", err), "Pets")
		r.notifier.Error("Error al cargar tus mascotas")
		return err
	}

	r.mu.Lock()
	r.pets = pets
	r.mu.Unlock()

	return nil
}

// Add registers a new pet for the signed-in owner and returns the
// stored document
func (r *Registry) Add(ctx context.Context, pet models.Pet) (*models.Pet, error) {
	user := r.session.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	now := time.Now()
	pet.ID = uuid.NewString()
	pet.OwnerID = user.UID
	pet.CreatedAt = now
	pet.UpdatedAt = now

	created, err := r.store.CreatePet(ctx, pet)
	if err != nil {
		logger.Error(fmt.Sprintf("Error al agregar mascota: %v", err), "Pets")
		r.notifier.Error("Error al agregar mascota")
		return nil, err
	}

	r.mu.Lock()
	r.pets = append([]models.Pet{*created}, r.pets...)
	r.mu.Unlock()

	r.notifier.Success("Mascota agregada exitosamente")
	return created, nil
}

// Update applies mutate to a copy of the pet, persists the result and
// only then replaces the local entry. The pet is read from the local
// list first and from the store as fallback.
func (r *Registry) Update(ctx context.Context, petID string, mutate func(*models.Pet)) (*models.Pet, error) {
	if r.session.User() == nil {
		return nil, ErrNotAuthenticated
	}

	pet, err := r.lookup(ctx, petID)
	if err != nil {
		return nil, err
	}

	updated := *pet
	mutate(&updated)
	updated.ID = petID
	updated.UpdatedAt = time.Now()

	if err := r.store.UpdatePet(ctx, petID, updated); err != nil {
		logger.Error(fmt.Sprintf("Error al actualizar mascota %s: %v", petID, err), "Pets")
		r.notifier.Error("Error al actualizar mascota")
		return nil, err
	}

	r.mu.Lock()
	replaced := false
	for i := range r.pets {
		if r.pets[i].ID == petID {
			r.pets[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		r.pets = append([]models.Pet{updated}, r.pets...)
	}
	r.mu.Unlock()

	return &updated, nil
}

// Delete removes a pet and, best effort, its attachments from blob
// storage. A failed blob delete is logged and never fails the operation.
func (r *Registry) Delete(ctx context.Context, petID string) error {
	if r.session.User() == nil {
		return ErrNotAuthenticated
	}

	pet, err := r.lookup(ctx, petID)
	if err != nil {
		return err
	}

	if err := r.store.DeletePet(ctx, petID); err != nil {
		logger.Error(fmt.Sprintf("Error al eliminar mascota %s: %v", petID, err), "Pets")
		r.notifier.Error("Error al eliminar mascota")
		return err
	}

	if r.blobs != nil {
		for _, doc := range pet.Documents {
			if err := r.blobs.Delete(ctx, doc.URL); err != nil {
				logger.Warn(fmt.Sprintf("No se pudo borrar el archivo %s: %v", doc.URL, err), "Pets")
			}
		}
		if pet.PhotoURL != "" {
			if err := r.blobs.Delete(ctx, pet.PhotoURL); err != nil {
				logger.Warn(fmt.Sprintf("No se pudo borrar la foto %s: %v", pet.PhotoURL, err), "Pets")
			}
		}
	}

	r.mu.Lock()
	for i := range r.pets {
		if r.pets[i].ID == petID {
			r.pets = append(r.pets[:i], r.pets[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.notifier.Success("Mascota eliminada")
	return nil
}

// GetByID returns the local copy of a pet, or nil if not loaded
func (r *Registry) GetByID(petID string) *models.Pet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.pets {
		if r.pets[i].ID == petID {
			pet := r.pets[i]
			return &pet
		}
	}
	return nil
}

// lookup reads a pet locally first and falls back to the store
func (r *Registry) lookup(ctx context.Context, petID string) (*models.Pet, error) {
	if pet := r.GetByID(petID); pet != nil {
		return pet, nil
	}

	pet, err := r.store.GetPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	if pet == nil {
		return nil, ErrPetNotFound
	}
	return pet, nil
}

// Medical history

// AddVaccine appends a vaccine record to a pet's history
func (r *Registry) AddVaccine(ctx context.Context, petID string, vaccine models.Vaccine) (*models.Pet, error) {
	vaccine.ID = uuid.NewString()

	pet, err := r.Update(ctx, petID, func(p *models.Pet) {
		p.Vaccines = append(p.Vaccines, vaccine)
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Success("Vacuna registrada")
	return pet, nil
}

// AddDisease appends a disease record to a pet's history
func (r *Registry) AddDisease(ctx context.Context, petID string, disease models.Disease) (*models.Pet, error) {
	disease.ID = uuid.NewString()

	pet, err := r.Update(ctx, petID, func(p *models.Pet) {
		p.Diseases = append(p.Diseases, disease)
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Success("Enfermedad registrada")
	return pet, nil
}

// AddTreatment appends a treatment record to a pet's history
func (r *Registry) AddTreatment(ctx context.Context, petID string, treatment models.Treatment) (*models.Pet, error) {
	treatment.ID = uuid.NewString()

	pet, err := r.Update(ctx, petID, func(p *models.Pet) {
		p.Treatments = append(p.Treatments, treatment)
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Success("Tratamiento registrado")
	return pet, nil
}

// Documents

// UploadDocument stores the file in blob storage and attaches its
// record to the pet. If the pet update fails the uploaded blob is
// removed again, best effort.
func (r *Registry) UploadDocument(ctx context.Context, petID, name, contentType string, data []byte) (*models.PetDocument, error) {
	if r.session.User() == nil {
		return nil, ErrNotAuthenticated
	}
	if r.blobs == nil {
		return nil, errors.New("almacenamiento de archivos no configurado")
	}

	key := fmt.Sprintf("documents/%s_%d_%s", petID, time.Now().UnixMilli(), name)

	url, err := r.blobs.Upload(ctx, key, contentType, data)
	if err != nil {
		logger.Error(fmt.Sprintf("Error al subir documento: %v", err), "Pets")
		r.notifier.Error("Error al subir documento")
		return nil, err
	}

	doc := models.PetDocument{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       contentType,
		URL:        url,
		UploadedAt: time.Now(),
		Size:       int64(len(data)),
	}

	if _, err := r.Update(ctx, petID, func(p *models.Pet) {
		p.Documents = append(p.Documents, doc)
	}); err != nil {
		if derr := r.blobs.Delete(ctx, url); derr != nil {
			logger.Warn(fmt.Sprintf("No se pudo limpiar el archivo huérfano %s: %v", url, derr), "Pets")
		}
		return nil, err
	}

	r.notifier.Success("Documento subido exitosamente")
	return &doc, nil
}

// DeleteDocument detaches a document record and removes its blob,
// best effort
func (r *Registry) DeleteDocument(ctx context.Context, petID, docID string) error {
	if r.session.User() == nil {
		return ErrNotAuthenticated
	}

	pet, err := r.lookup(ctx, petID)
	if err != nil {
		return err
	}

	var target *models.PetDocument
	for i := range pet.Documents {
		if pet.Documents[i].ID == docID {
			target = &pet.Documents[i]
			break
		}
	}
	if target == nil {
		return ErrDocumentNotFound
	}

	if _, err := r.Update(ctx, petID, func(p *models.Pet) {
		kept := p.Documents[:0]
		for _, d := range p.Documents {
			if d.ID != docID {
				kept = append(kept, d)
			}
		}
		p.Documents = kept
	}); err != nil {
		return err
	}

	if r.blobs != nil {
		if err := r.blobs.Delete(ctx, target.URL); err != nil {
			logger.Warn(fmt.Sprintf("No se pudo borrar el archivo %s: %v", target.URL, err), "Pets")
		}
	}

	r.notifier.Success("Documento eliminado")
	return nil
}

// Reminders

// UpcomingVaccines projects every vaccine whose next dose falls within
// the next 30 days, soonest first
func (r *Registry) UpcomingVaccines() []models.UpcomingVaccine {
	now := time.Now()
	limit := now.Add(vaccineReminderWindow)

	r.mu.RLock()
	var upcoming []models.UpcomingVaccine
	for _, pet := range r.pets {
		for _, v := range pet.Vaccines {
			if v.NextDose == nil {
				continue
			}
			dose := *v.NextDose
			if dose.Before(now) || dose.After(limit) {
				continue
			}
			upcoming = append(upcoming, models.UpcomingVaccine{
				PetID:       pet.ID,
				PetName:     pet.Name,
				VaccineName: v.Name,
				NextDose:    dose,
				DaysUntil:   int(math.Ceil(dose.Sub(now).Hours() / 24)),
			})
		}
	}
	r.mu.RUnlock()

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].NextDose.Before(upcoming[j].NextDose)
	})

	return upcoming
}

// Pets returns a snapshot of the loaded pet list
func (r *Registry) Pets() []models.Pet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Pet, len(r.pets))
	copy(out, r.pets)
	return out
}

// Loading reports whether a list load is in flight
func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

func (r *Registry) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}
