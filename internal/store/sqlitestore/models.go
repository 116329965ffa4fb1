package sqlitestore

import (
	"time"

	"ffarm/internal/farm"
)

type userRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ChatID    string `gorm:"uniqueIndex;not null"`
	Username  string
	CreatedAt time.Time
	ManagerOn bool `gorm:"not null;default:false"`
	IsAdmin   bool `gorm:"not null;default:false"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) account() farm.Account {
	return farm.Account{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Username:  r.Username,
		CreatedAt: r.CreatedAt.UTC(),
		ManagerOn: r.ManagerOn,
		IsAdmin:   r.IsAdmin,
	}
}

type ledgerRow struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	UserID          int64 `gorm:"index;not null"`
	Amount          int64 `gorm:"not null"`
	Reason          string
	Description     string
	TransactionDate time.Time
}

func (ledgerRow) TableName() string { return "cashflow_ledger" }

func (r ledgerRow) entry() farm.LedgerEntry {
	return farm.LedgerEntry{
		ID:          r.ID,
		AccountID:   r.UserID,
		Amount:      r.Amount,
		Reason:      r.Reason,
		Description: r.Description,
		CreatedAt:   r.TransactionDate.UTC(),
	}
}

type plantRow struct {
	ID                int64 `gorm:"primaryKey"`
	Name              string
	Category          string `gorm:"index"`
	Emoji             string
	SeedPurchasePrice int64
	SellingPrice      int64
	HarvestSeconds    int64
	MinRatio          float64
	MaxRatio          float64
	UpgradeID         int64
}

func (plantRow) TableName() string { return "plants_listing" }

func plantToRow(p farm.PlantDefinition) plantRow {
	return plantRow{
		ID:                p.ID,
		Name:              p.Name,
		Category:          p.Category,
		Emoji:             p.Emoji,
		SeedPurchasePrice: p.SeedCost,
		SellingPrice:      p.SellPrice,
		HarvestSeconds:    int64(p.HarvestDuration / time.Second),
		MinRatio:          p.MinRatio,
		MaxRatio:          p.MaxRatio,
		UpgradeID:         p.UnlockUpgradeID,
	}
}

func (r plantRow) plant() farm.PlantDefinition {
	return farm.PlantDefinition{
		ID:              r.ID,
		Name:            r.Name,
		Category:        r.Category,
		Emoji:           r.Emoji,
		SeedCost:        r.SeedPurchasePrice,
		SellPrice:       r.SellingPrice,
		HarvestDuration: time.Duration(r.HarvestSeconds) * time.Second,
		MinRatio:        r.MinRatio,
		MaxRatio:        r.MaxRatio,
		UnlockUpgradeID: r.UpgradeID,
	}
}

type upgradeRow struct {
	ID          int64 `gorm:"primaryKey"`
	Level       int
	Category    string `gorm:"index"`
	Description string
	Price       int64
}

func (upgradeRow) TableName() string { return "upgrade_listings" }

func (r upgradeRow) upgrade() farm.UpgradeDefinition {
	return farm.UpgradeDefinition{
		ID:          r.ID,
		Level:       r.Level,
		Category:    farm.UpgradeCategory(r.Category),
		Description: r.Description,
		Price:       r.Price,
	}
}

type ownedRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index;not null"`
	UpgradeID int64 `gorm:"not null"`
	CreatedAt time.Time
}

func (ownedRow) TableName() string { return "user_upgrades" }

type cropRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index;not null"`
	PlantID   int64 `gorm:"not null"`
	Quantity  int64 `gorm:"not null"`
	PlantedAt time.Time
	Status    string `gorm:"index;not null"`
}

func (cropRow) TableName() string { return "user_crops" }

func (r cropRow) batch() farm.CropBatch {
	return farm.CropBatch{
		ID:        r.ID,
		AccountID: r.UserID,
		PlantID:   r.PlantID,
		Quantity:  r.Quantity,
		PlantedAt: r.PlantedAt.UTC(),
		Status:    farm.CropStatus(r.Status),
	}
}

type autoPlantRow struct {
	UserID  int64 `gorm:"primaryKey;autoIncrement:false"`
	PlantID int64 `gorm:"not null"`
}

func (autoPlantRow) TableName() string { return "user_auto_planting" }
