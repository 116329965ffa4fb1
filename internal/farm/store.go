package farm

import (
	"context"
	"time"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	AccountByID(ctx context.Context, id int64) (Account, error)
	AccountByChatID(ctx context.Context, chatID string) (Account, error)
	// ListAccounts and ListManagedAccounts return accounts in id order.
	ListAccounts(ctx context.Context) ([]Account, error)
	ListManagedAccounts(ctx context.Context) ([]Account, error)
	SetManager(ctx context.Context, accountID int64, on bool) error
	SetAdmin(ctx context.Context, accountID int64, admin bool) error
}

type LedgerStore interface {
	AppendLedgerEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)
	// Balance is the sum of every entry for the account.
	Balance(ctx context.Context, accountID int64) (int64, error)
	LedgerEntries(ctx context.Context, accountID int64) ([]LedgerEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type CatalogStore interface {
	CatalogSource
	// SeedCatalog inserts the given rows only into empty tables.
	SeedCatalog(ctx context.Context, plants []PlantDefinition, upgrades []UpgradeDefinition) error
}

type UpgradeStore interface {
	OwnedUpgradeIDs(ctx context.Context, accountID int64) ([]int64, error)
	AddOwnedUpgrade(ctx context.Context, o OwnedUpgrade) error
}

type CropStore interface {
	InsertBatch(ctx context.Context, b CropBatch) (CropBatch, error)
	BatchesByAccount(ctx context.Context, accountID int64) ([]CropBatch, error)
	// BatchesByStatus scans every account, in batch id order.
	BatchesByStatus(ctx context.Context, status CropStatus) ([]CropBatch, error)
	AccountBatchesByStatus(ctx context.Context, accountID int64, status CropStatus) ([]CropBatch, error)
	OccupiedSlots(ctx context.Context, accountID int64) (int64, error)
	// TransitionBatch moves a batch from one status to another only if it is
	// still in from. It reports whether this call performed the transition.
	TransitionBatch(ctx context.Context, batchID int64, from, to CropStatus) (bool, error)
}

type AutoPlantStore interface {
	AutoPlantPreference(ctx context.Context, accountID int64) (AutoPlantPreference, error)
	SetAutoPlantPreference(ctx context.Context, p AutoPlantPreference) error
}

// Store is the persistence contract the services depend on. Each write is
// committed individually.
type Store interface {
	AccountStore
	LedgerStore
	CatalogStore
	UpgradeStore
	CropStore
	AutoPlantStore
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
