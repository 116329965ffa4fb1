// Package pgstore persists farm state in PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ffarm/internal/farm"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ farm.Store = (*Store)(nil)

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, log: logger}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const accountColumns = `id, chat_id, username, created_at, manager_on, is_admin`

func scanAccount(row pgx.Row) (farm.Account, error) {
	var a farm.Account
	if err := row.Scan(&a.ID, &a.ChatID, &a.Username, &a.CreatedAt, &a.ManagerOn, &a.IsAdmin); err != nil {
		return farm.Account{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a farm.Account) (farm.Account, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (chat_id, username, created_at, manager_on, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		a.ChatID, a.Username, a.CreatedAt, a.ManagerOn, a.IsAdmin,
	)
	out, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return farm.Account{}, farm.ErrAccountExists
		}
		return farm.Account{}, fmt.Errorf("create account: %w", err)
	}
	return out, nil
}

func (s *Store) findAccount(ctx context.Context, where string, arg any) (farm.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return farm.Account{}, farm.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) AccountByID(ctx context.Context, id int64) (farm.Account, error) {
	return s.findAccount(ctx, `id = $1`, id)
}

func (s *Store) AccountByChatID(ctx context.Context, chatID string) (farm.Account, error) {
	return s.findAccount(ctx, `chat_id = $1`, chatID)
}

func (s *Store) listAccounts(ctx context.Context, query string, args ...any) ([]farm.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]farm.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountColumns+` FROM users ORDER BY id`)
}

func (s *Store) ListManagedAccounts(ctx context.Context) ([]farm.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountColumns+` FROM users WHERE manager_on ORDER BY id`)
}

func (s *Store) updateFlag(ctx context.Context, query string, accountID int64, value bool) error {
	tag, err := s.pool.Exec(ctx, query, value, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return farm.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetManager(ctx context.Context, accountID int64, on bool) error {
	return s.updateFlag(ctx, `UPDATE users SET manager_on = $1 WHERE id = $2`, accountID, on)
}

func (s *Store) SetAdmin(ctx context.Context, accountID int64, admin bool) error {
	return s.updateFlag(ctx, `UPDATE users SET is_admin = $1 WHERE id = $2`, accountID, admin)
}

func (s *Store) AppendLedgerEntry(ctx context.Context, e farm.LedgerEntry) (farm.LedgerEntry, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cashflow_ledger (user_id, amount, reason, description, transaction_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.AccountID, e.Amount, e.Reason, e.Description, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return farm.LedgerEntry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) Balance(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM cashflow_ledger WHERE user_id = $1`, accountID).Scan(&total)
	return total, err
}

func (s *Store) LedgerEntries(ctx context.Context, accountID int64) ([]farm.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, amount, reason, description, transaction_date
		FROM cashflow_ledger
		WHERE user_id = $1
		ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.LedgerEntry{}
	for rows.Next() {
		var e farm.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Reason, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]farm.LeaderboardRow, error) {
	if limit <= 0 {
		limit = farm.DefaultLeaderboardSize
	}
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, COALESCE(SUM(l.amount), 0)::BIGINT AS balance
		FROM users u
		LEFT JOIN cashflow_ledger l ON l.user_id = u.id
		GROUP BY u.id, u.username
		ORDER BY balance DESC, u.id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.LeaderboardRow{}
	for rows.Next() {
		var r farm.LeaderboardRow
		if err := rows.Scan(&r.AccountID, &r.Username, &r.Balance); err != nil {
			return nil, err
		}
		r.Rank = int64(len(out) + 1)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListPlants(ctx context.Context) ([]farm.PlantDefinition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, emoji, seed_purchase_price, selling_price,
		       harvest_seconds, min_ratio, max_ratio, upgrade_id
		FROM plants_listing
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.PlantDefinition{}
	for rows.Next() {
		var (
			p       farm.PlantDefinition
			seconds int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Emoji, &p.SeedCost, &p.SellPrice,
			&seconds, &p.MinRatio, &p.MaxRatio, &p.UnlockUpgradeID); err != nil {
			return nil, err
		}
		p.HarvestDuration = time.Duration(seconds) * time.Second
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListUpgrades(ctx context.Context) ([]farm.UpgradeDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, level, category, description, price FROM upgrade_listings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.UpgradeDefinition{}
	for rows.Next() {
		var (
			u        farm.UpgradeDefinition
			category string
		)
		if err := rows.Scan(&u.ID, &u.Level, &category, &u.Description, &u.Price); err != nil {
			return nil, err
		}
		u.Category = farm.UpgradeCategory(category)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SeedCatalog(ctx context.Context, plants []farm.PlantDefinition, upgrades []farm.UpgradeDefinition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM upgrade_listings`).Scan(&count); err != nil {
		return err
	}
	if count == 0 && len(upgrades) > 0 {
		batch := &pgx.Batch{}
		for _, u := range upgrades {
			batch.Queue(`INSERT INTO upgrade_listings (id, level, category, description, price) VALUES ($1, $2, $3, $4, $5)`,
				u.ID, u.Level, string(u.Category), u.Description, u.Price)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed upgrades: %w", err)
		}
		s.log.Info("seeded upgrade catalog", "rows", len(upgrades))
	}

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM plants_listing`).Scan(&count); err != nil {
		return err
	}
	if count == 0 && len(plants) > 0 {
		batch := &pgx.Batch{}
		for _, p := range plants {
			batch.Queue(`
				INSERT INTO plants_listing (id, name, category, emoji, seed_purchase_price, selling_price,
				                            harvest_seconds, min_ratio, max_ratio, upgrade_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, p.ID, p.Name, p.Category, p.Emoji, p.SeedCost, p.SellPrice,
				int64(p.HarvestDuration/time.Second), p.MinRatio, p.MaxRatio, p.UnlockUpgradeID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed plants: %w", err)
		}
		s.log.Info("seeded plant catalog", "rows", len(plants))
	}
	return tx.Commit(ctx)
}

func (s *Store) OwnedUpgradeIDs(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT upgrade_id FROM user_upgrades WHERE user_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *Store) AddOwnedUpgrade(ctx context.Context, o farm.OwnedUpgrade) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_upgrades (user_id, upgrade_id, created_at) VALUES ($1, $2, $3)`,
		o.AccountID, o.UpgradeID, o.CreatedAt)
	return err
}

const batchColumns = `id, user_id, plant_id, quantity, planted_at, status`

func scanBatch(row pgx.Row) (farm.CropBatch, error) {
	var (
		b      farm.CropBatch
		status string
	)
	if err := row.Scan(&b.ID, &b.AccountID, &b.PlantID, &b.Quantity, &b.PlantedAt, &status); err != nil {
		return farm.CropBatch{}, err
	}
	b.PlantedAt = b.PlantedAt.UTC()
	b.Status = farm.CropStatus(status)
	return b, nil
}

func (s *Store) InsertBatch(ctx context.Context, b farm.CropBatch) (farm.CropBatch, error) {
	out, err := scanBatch(s.pool.QueryRow(ctx, `
		INSERT INTO user_crops (user_id, plant_id, quantity, planted_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+batchColumns,
		b.AccountID, b.PlantID, b.Quantity, b.PlantedAt, string(b.Status),
	))
	if err != nil {
		return farm.CropBatch{}, fmt.Errorf("insert batch: %w", err)
	}
	return out, nil
}

func (s *Store) findBatches(ctx context.Context, where string, args ...any) ([]farm.CropBatch, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+batchColumns+` FROM user_crops WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []farm.CropBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) BatchesByAccount(ctx context.Context, accountID int64) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, `user_id = $1`, accountID)
}

func (s *Store) BatchesByStatus(ctx context.Context, status farm.CropStatus) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, `status = $1`, string(status))
}

func (s *Store) AccountBatchesByStatus(ctx context.Context, accountID int64, status farm.CropStatus) ([]farm.CropBatch, error) {
	return s.findBatches(ctx, `user_id = $1 AND status = $2`, accountID, string(status))
}

func (s *Store) OccupiedSlots(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::BIGINT
		FROM user_crops
		WHERE user_id = $1 AND status IN ($2, $3)
	`, accountID, string(farm.StatusPlanted), string(farm.StatusReady)).Scan(&total)
	return total, err
}

func (s *Store) TransitionBatch(ctx context.Context, batchID int64, from, to farm.CropStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE user_crops SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), batchID, string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AutoPlantPreference(ctx context.Context, accountID int64) (farm.AutoPlantPreference, error) {
	p := farm.AutoPlantPreference{AccountID: accountID}
	err := s.pool.QueryRow(ctx, `SELECT plant_id FROM user_auto_planting WHERE user_id = $1`, accountID).Scan(&p.PlantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return farm.AutoPlantPreference{}, farm.ErrNoAutoPlant
	}
	if err != nil {
		return farm.AutoPlantPreference{}, err
	}
	return p, nil
}

func (s *Store) SetAutoPlantPreference(ctx context.Context, p farm.AutoPlantPreference) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_auto_planting (user_id, plant_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET plant_id = EXCLUDED.plant_id
	`, p.AccountID, p.PlantID)
	return err
}
