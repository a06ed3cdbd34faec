package db

import (
	"testing"
	"time"

	"github.com/adgate/adgate/internal/db/models"
)

// testDBPath returns a uniquely named shared in-memory database so tests
// within one process do not see each other's rows.
func testDBPath(t *testing.T) string {
	t.Helper()
	return "file:" + t.Name() + "?mode=memory&cache=shared"
}

func TestInitDB_MigratesModels(t *testing.T) {
	db, err := InitDB(testDBPath(t))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	cred := models.PlatformCredential{
		ID:           "cred-1",
		AdvertiserID: "adv-1",
		PlatformID:   "amazon_ads",
		RefreshToken: "rt-1",
		IsActive:     true,
	}
	if err := db.Create(&cred).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := db.Create(&models.OperationLogEntry{
		ID:            "log-1",
		AdvertiserID:  "adv-1",
		PlatformID:    "amazon_ads",
		OperationType: models.OpInitialConnection,
		Status:        models.StatusSuccess,
		Timestamp:     time.Now().UnixMilli(),
	}).Error; err != nil {
		t.Fatalf("create log entry: %v", err)
	}
}

func TestCredentialUniquePerAdvertiserPlatform(t *testing.T) {
	db, err := InitDB(testDBPath(t))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	first := models.PlatformCredential{
		ID:           "cred-1",
		AdvertiserID: "adv-1",
		PlatformID:   "amazon_ads",
		RefreshToken: "rt-1",
		IsActive:     true,
	}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create first credential: %v", err)
	}

	dup := models.PlatformCredential{
		ID:           "cred-2",
		AdvertiserID: "adv-1",
		PlatformID:   "amazon_ads",
		RefreshToken: "rt-2",
		IsActive:     true,
	}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("expected unique index violation for duplicate (advertiser, platform)")
	}
}

func TestCredentialStale(t *testing.T) {
	now := time.Now()
	skew := 5 * time.Minute

	tests := []struct {
		name  string
		cred  models.PlatformCredential
		stale bool
	}{
		{name: "no expiry recorded", cred: models.PlatformCredential{}, stale: true},
		{name: "already expired", cred: models.PlatformCredential{TokenExpiresAt: now.Add(-10 * time.Second)}, stale: true},
		{name: "inside skew window", cred: models.PlatformCredential{TokenExpiresAt: now.Add(2 * time.Minute)}, stale: true},
		{name: "comfortably fresh", cred: models.PlatformCredential{TokenExpiresAt: now.Add(time.Hour)}, stale: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Stale(now, skew); got != tt.stale {
				t.Fatalf("expected stale=%v, got %v", tt.stale, got)
			}
		})
	}
}
