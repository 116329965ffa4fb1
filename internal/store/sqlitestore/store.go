// Package sqlitestore persists farm state in a single SQLite file through
// GORM. The driver is pure Go, so no cgo toolchain is needed.
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"ffarm/internal/farm"
)

type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ farm.Store = (*Store)(nil)

func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One writer keeps status compare-and-set and ledger appends serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&userRow{},
		&ledgerRow{},
		&plantRow{},
		&upgradeRow{},
		&ownedRow{},
		&cropRow{},
		&autoPlantRow{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	logger.Info("sqlite store ready", "path", path)
	return &Store{db: db, log: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreateAccount(ctx context.Context, a farm.Account) (farm.Account, error) {
	row := userRow{
		ChatID:    a.ChatID,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
		ManagerOn: a.ManagerOn,
		IsAdmin:   a.IsAdmin,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return farm.Account{}, farm.ErrAccountExists
		}
		return farm.Account{}, err
	}
	return row.account(), nil
}

func (s *Store) findAccount(ctx context.Context, query string, arg any) (farm.Account, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return farm.Account{}, farm.ErrAccountNotFound
	}
	if err != nil {
		return farm.Account{}, err
	}
	return row.account(), nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (farm.Account, error) {
	return s.findAccount(ctx, "id = ?", id)
}

func (s *Store) AccountByChatID(ctx context.Context, chatID string) (farm.Account, error) {
	return s.findAccount(ctx, "chat_id = ?", chatID)
}

func (s *Store) listAccounts(ctx context.Context, tx *gorm.DB) ([]farm.Account, error) {
	var rows []userRow
	if err := tx.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]farm.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.account())
	}
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]farm.Account, error) {
	return s.listAccounts(ctx, s.db)
}

func (s *Store) ListManagedAccounts(ctx context.Context) ([]farm.Account, error) {
	return s.listAccounts(ctx, s.db.Where("manager_on = ?", true))
}

func (s *Store) updateAccount(ctx context.Context, accountID int64, column string, value bool) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", accountID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return farm.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetManager(ctx context.Context, accountID int64, on bool) error {
	return s.updateAccount(ctx, accountID, "manager_on", on)
}

func (s *Store) SetAdmin(ctx context.Context, accountID int64, admin bool) error {
	return s.updateAccount(ctx, accountID, "is_admin", admin)
}

func (s *Store) AppendLedgerEntry(ctx context.Context, e farm.LedgerEntry) (farm.LedgerEntry, error) {
	row := ledgerRow{
		UserID:          e.AccountID,
		Amount:          e.Amount,
		Reason:          e.Reason,
		Description:     e.Description,
		TransactionDate: e.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return farm.LedgerEntry{}, err
	}
	return row.entry(), nil
}

func (s *Store) Balance(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&ledgerRow{}).
		Where("user_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (s *Store) LedgerEntries(ctx context.Context, accountID int64) ([]farm.LedgerEntry, error) {
	var rows []ledgerRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", accountID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]farm.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]farm.LeaderboardRow, error) {
	if limit <= 0 {
		limit = farm.DefaultLeaderboardSize
	}
	var rows []farm.LeaderboardRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT u.id AS account_id, u.username AS username, COALESCE(SUM(l.amount), 0) AS balance
		FROM users u
		LEFT JOIN cashflow_ledger l ON l.user_id = u.id
		GROUP BY u.id, u.username
		ORDER BY balance DESC, u.id ASC
		LIMIT ?
	`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows, nil
}

func (s *Store) ListPlants(ctx context.Context) ([]farm.PlantDefinition, error) {
	var rows []plantRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]farm.PlantDefinition, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.plant())
	}
	return out, nil
}

func (s *Store) ListUpgrades(ctx context.Context) ([]farm.UpgradeDefinition, error) {
	var rows []upgradeRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]farm.UpgradeDefinition, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.upgrade())
	}
	return out, nil
}

func (s *Store) SeedCatalog(ctx context.Context, plants []farm.PlantDefinition, upgrades []farm.UpgradeDefinition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&upgradeRow{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 && len(upgrades) > 0 {
			rows := make([]upgradeRow, 0, len(upgrades))
			for _, u := range upgrades {
				rows = append(rows, upgradeRow{ID: u.ID, Level: u.Level, Category: string(u.Category), Description: u.Description, Price: u.Price})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("seed upgrades: %w", err)
			}
			s.log.Info("seeded upgrade catalog", "rows", len(rows))
		}

		if err := tx.Model(&plantRow{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 && len(plants) > 0 {
			rows := make([]plantRow, 0, len(plants))
			for _, p := range plants {
				rows = append(rows, plantToRow(p))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("seed plants: %w", err)
			}
			s.log.Info("seeded plant catalog", "rows", len(rows))
		}
		return nil
	})
}

func (s *Store) OwnedUpgradeIDs(ctx context.Context, accountID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.WithContext(ctx).Model(&ownedRow{}).
		Where("user_id = ?", accountID).
		Order("id").
		Pluck("upgrade_id", &ids).Error
	return ids, err
}

func (s *Store) AddOwnedUpgrade(ctx context.Context, o farm.OwnedUpgrade) error {
	return s.db.WithContext(ctx).Create(&ownedRow{UserID: o.AccountID, UpgradeID: o.UpgradeID, CreatedAt: o.CreatedAt}).Error
}

func (s *Store) InsertBatch(ctx context.Context, b farm.CropBatch) (farm.CropBatch, error) {
	row := cropRow{
		UserID:    b.AccountID,
		PlantID:   b.PlantID,
		Quantity:  b.Quantity,
		PlantedAt: b.PlantedAt,
		Status:    string(b.Status),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return farm.CropBatch{}, err
	}
	return row.batch(), nil
}

func (s *Store) findBatches(ctx context.Context, tx *gorm.DB) ([]farm.CropBatch, error) {
	var rows []cropRow
	if err := tx.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]farm.CropBatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.batch())
	}
	return out, nil
}

func (s *Store) BatchesByAccount(ctx context.Context, accountID int64) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, s.db.Where("user_id = ?", accountID))
}

func (s *Store) BatchesByStatus(ctx context.Context, status farm.CropStatus) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, s.db.Where("status = ?", string(status)))
}

func (s *Store) AccountBatchesByStatus(ctx context.Context, accountID int64, status farm.CropStatus) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, s.db.Where("user_id = ? AND status = ?", accountID, string(status)))
}

func (s *Store) OccupiedSlots(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&cropRow{}).
		Where("user_id = ? AND status IN ?", accountID, []string{string(farm.StatusPlanted), string(farm.StatusReady)}).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

func (s *Store) TransitionBatch(ctx context.Context, batchID int64, from, to farm.CropStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&cropRow{}).
		Where("id = ? AND status = ?", batchID, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) AutoPlantPreference(ctx context.Context, accountID int64) (farm.AutoPlantPreference, error) {
	var row autoPlantRow
	err := s.db.WithContext(ctx).Where("user_id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return farm.AutoPlantPreference{}, farm.ErrNoAutoPlant
	}
	if err != nil {
		return farm.AutoPlantPreference{}, err
	}
	return farm.AutoPlantPreference{AccountID: row.UserID, PlantID: row.PlantID}, nil
}

func (s *Store) SetAutoPlantPreference(ctx context.Context, p farm.AutoPlantPreference) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plant_id"}),
	}).Create(&autoPlantRow{UserID: p.AccountID, PlantID: p.PlantID}).Error
}
