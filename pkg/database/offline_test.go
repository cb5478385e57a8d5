package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

// offlineDatabase builds a Database that never connected, with the
// global data managers pointing at it.
func offlineDatabase() *Database {
	db := NewDatabase()
	InitGlobalDataManagers(db)
	return db
}

func queueLen(db *Database) int {
	db.queueMu.Lock()
	defer db.queueMu.Unlock()
	return len(db.writeQueue)
}

func TestCreateClaimOfflineFails(t *testing.T) {
	db := offlineDatabase()
	store := NewPremiumStore(db)

	err := store.CreateClaim(context.Background(), models.UserDiscount{
		UserID:     "u1",
		DiscountID: "d1",
		PartnerID:  "p1",
	})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("CreateClaim sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if n := queueLen(db); n != 0 {
		t.Fatalf("CreateClaim sin conexión encoló %d operaciones, esperaba 0", n)
	}
}

func TestActivatePremiumOfflineFails(t *testing.T) {
	db := offlineDatabase()
	store := NewPremiumStore(db)

	now := time.Now()
	err := store.ActivatePremium(context.Background(), "u1", now.AddDate(1, 0, 0), now)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("ActivatePremium sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if n := queueLen(db); n != 0 {
		t.Fatalf("ActivatePremium sin conexión encoló %d operaciones, esperaba 0", n)
	}
}

func TestPetWritesOfflineFail(t *testing.T) {
	db := offlineDatabase()
	store := NewPetStore(db)
	ctx := context.Background()

	if _, err := store.CreatePet(ctx, models.Pet{Name: "Luna", OwnerID: "u1"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CreatePet sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if err := store.UpdatePet(ctx, "pet-1", models.Pet{Name: "Luna"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("UpdatePet sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if err := store.DeletePet(ctx, "pet-1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("DeletePet sin conexión: err = %v, esperaba ErrNotConnected", err)
	}
	if n := queueLen(db); n != 0 {
		t.Fatalf("escrituras de mascotas sin conexión encolaron %d operaciones, esperaba 0", n)
	}
}

// Writes queued while the database has never been connected must carry
// the collection name the manager was built for, or syncOfflineWrites
// would drop them after reconnecting.
func TestOfflineQueueCarriesCollectionName(t *testing.T) {
	db := NewDatabase()
	dm := NewDataManager[models.UserProfile](CollectionUsers, db)

	if _, err := dm.Set(bson.M{"uid": "u1"}, bson.M{"displayName": "Ana"}); err != nil {
		t.Fatalf("Set sin conexión: err = %v", err)
	}

	db.queueMu.Lock()
	defer db.queueMu.Unlock()
	if len(db.writeQueue) != 1 {
		t.Fatalf("writeQueue tiene %d operaciones, esperaba 1", len(db.writeQueue))
	}
	if got := db.writeQueue[0].CollectionName; got != CollectionUsers {
		t.Fatalf("operación encolada con colección %q, esperaba %q", got, CollectionUsers)
	}
}

func TestOfflineDeleteQueueCarriesCollectionName(t *testing.T) {
	db := NewDatabase()
	dm := NewDataManager[models.UserProfile](CollectionUsers, db)

	if err := dm.Delete(bson.M{"uid": "u1"}); err != nil {
		t.Fatalf("Delete sin conexión: err = %v", err)
	}

	db.queueMu.Lock()
	defer db.queueMu.Unlock()
	if len(db.writeQueue) != 1 {
		t.Fatalf("writeQueue tiene %d operaciones, esperaba 1", len(db.writeQueue))
	}
	if got := db.writeQueue[0].CollectionName; got != CollectionUsers {
		t.Fatalf("operación encolada con colección %q, esperaba %q", got, CollectionUsers)
	}
}

// A failed initial connection must still arm the reconnect ticker,
// even though IsConnected never flipped to true.
func TestReconnectStartsAfterFailedInitialConnect(t *testing.T) {
	db := NewDatabase()

	db.mu.Lock()
	db.handleDisconnection("mongodb://127.0.0.1:1", "huellitas")
	db.mu.Unlock()

	db.mu.RLock()
	ticker := db.reconnectTicker
	db.mu.RUnlock()
	if ticker == nil {
		t.Fatal("reconnectTicker no se activó tras un fallo de conexión inicial")
	}

	if err := db.Disconnect(); err != nil {
		t.Fatalf("Disconnect: err = %v", err)
	}
}
