package farm

import "time"

type CropStatus string

const (
	StatusPlanted   CropStatus = "planted"
	StatusReady     CropStatus = "ready_for_harvest"
	StatusHarvested CropStatus = "harvested"
)

// Occupying reports whether a batch in this status still holds plot slots.
func (s CropStatus) Occupying() bool {
	return s == StatusPlanted || s == StatusReady
}

type UpgradeCategory string

const (
	CategoryPlot    UpgradeCategory = "plot"
	CategoryManager UpgradeCategory = "manager"
	CategoryCrops   UpgradeCategory = "crops"
)

func (c UpgradeCategory) Valid() bool {
	switch c {
	case CategoryPlot, CategoryManager, CategoryCrops:
		return true
	default:
		return false
	}
}

// Ledger reasons.
const (
	ReasonRegistration    = "registration_bonus"
	ReasonSeedPurchase    = "seed_purchase"
	ReasonHarvestSale     = "harvest_sale"
	ReasonManagerPayroll  = "manager_payroll"
	ReasonUpgradePurchase = "upgrade_purchase"
)

type Account struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ManagerOn bool      `json:"manager_on"`
	IsAdmin   bool      `json:"is_admin"`
}

// LedgerEntry is immutable once appended. Amount is signed: credits are
// positive, debits negative.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type PlantDefinition struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Category        string        `json:"category"`
	Emoji           string        `json:"emoji"`
	SeedCost        int64         `json:"seed_cost"`
	SellPrice       int64         `json:"sell_price"`
	HarvestDuration time.Duration `json:"harvest_duration"`
	MinRatio        float64       `json:"min_ratio"`
	MaxRatio        float64       `json:"max_ratio"`
	// UnlockUpgradeID is zero when the plant is available to everyone.
	UnlockUpgradeID int64 `json:"unlock_upgrade_id,omitempty"`
}

func (p PlantDefinition) Gated() bool {
	return p.UnlockUpgradeID != 0
}

type UpgradeDefinition struct {
	ID          int64           `json:"id"`
	Level       int             `json:"level"`
	Category    UpgradeCategory `json:"category"`
	Description string          `json:"description"`
	Price       int64           `json:"price"`
}

type OwnedUpgrade struct {
	AccountID int64     `json:"account_id"`
	UpgradeID int64     `json:"upgrade_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CropBatch struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"account_id"`
	PlantID   int64      `json:"plant_id"`
	Quantity  int64      `json:"quantity"`
	PlantedAt time.Time  `json:"planted_at"`
	Status    CropStatus `json:"status"`
}

type AutoPlantPreference struct {
	AccountID int64 `json:"account_id"`
	PlantID   int64 `json:"plant_id"`
}

type LeaderboardRow struct {
	Rank      int64  `json:"rank"`
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Balance   int64  `json:"balance"`
}

type BatchView struct {
	BatchID          int64      `json:"batch_id"`
	PlantID          int64      `json:"plant_id"`
	PlantName        string     `json:"plant_name"`
	Emoji            string     `json:"emoji"`
	Quantity         int64      `json:"quantity"`
	Status           CropStatus `json:"status"`
	MinutesRemaining int64      `json:"minutes_remaining"`
	Label            string     `json:"label"`
}

type FarmStatus struct {
	AccountID      int64       `json:"account_id"`
	Balance        int64       `json:"balance"`
	PlotTier       int         `json:"plot_tier"`
	ManagerTier    int         `json:"manager_tier"`
	ManagerOn      bool        `json:"manager_on"`
	OccupiedSlots  int64       `json:"occupied_slots"`
	AvailableSlots int64       `json:"available_slots"`
	Batches        []BatchView `json:"batches"`
}

type PlantInput struct {
	AccountID int64
	PlantID   int64
	Quantity  int64
	// Max plants the largest quantity both balance and free slots allow.
	Max bool
}

type PlantResult struct {
	Batch   CropBatch `json:"batch"`
	Cost    int64     `json:"cost"`
	Balance int64     `json:"balance"`
}

type Plantable struct {
	PlantID   int64 `json:"plant_id"`
	ByBalance int64 `json:"by_balance"`
	BySlots   int64 `json:"by_slots"`
	Max       int64 `json:"max"`
}

type HarvestResult struct {
	AccountID  int64            `json:"account_id"`
	Outcomes   []HarvestOutcome `json:"outcomes"`
	Revenue    int64            `json:"revenue"`
	Payroll    int64            `json:"payroll"`
	DataErrors []string         `json:"data_errors,omitempty"`
}

type UpgradeResult struct {
	Upgrade UpgradeDefinition `json:"upgrade"`
	Balance int64             `json:"balance"`
}

type UpgradeOffer struct {
	Category     UpgradeCategory   `json:"category"`
	CurrentLevel int               `json:"current_level"`
	Next         UpgradeDefinition `json:"next"`
}

type CropUnlock struct {
	Upgrade UpgradeDefinition `json:"upgrade"`
	Plants  []PlantDefinition `json:"plants"`
	Owned   bool              `json:"owned"`
}

type SweepReport struct {
	Promoted       int     `json:"promoted"`
	Notified       []int64 `json:"notified"`
	Harvested      []int64 `json:"harvested"`
	Replanted      []int64 `json:"replanted"`
	DataErrors     int     `json:"data_errors"`
	DeliveryErrors int     `json:"delivery_errors"`
}
