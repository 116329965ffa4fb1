// Package memstore keeps all farm state in process memory.
package memstore

import (
	"context"
	"sort"
	"sync"

	"ffarm/internal/farm"
)

type Store struct {
	mu sync.Mutex

	nextAccount int64
	nextEntry   int64
	nextBatch   int64

	accounts  map[int64]farm.Account
	byChat    map[string]int64
	ledger    []farm.LedgerEntry
	plants    map[int64]farm.PlantDefinition
	upgrades  map[int64]farm.UpgradeDefinition
	owned     []farm.OwnedUpgrade
	batches   map[int64]farm.CropBatch
	autoPlant map[int64]int64
}

var _ farm.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:  make(map[int64]farm.Account),
		byChat:    make(map[string]int64),
		plants:    make(map[int64]farm.PlantDefinition),
		upgrades:  make(map[int64]farm.UpgradeDefinition),
		batches:   make(map[int64]farm.CropBatch),
		autoPlant: make(map[int64]int64),
	}
}

func (s *Store) CreateAccount(_ context.Context, a farm.Account) (farm.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byChat[a.ChatID]; ok {
		return farm.Account{}, farm.ErrAccountExists
	}
	s.nextAccount++
	a.ID = s.nextAccount
	s.accounts[a.ID] = a
	s.byChat[a.ChatID] = a.ID
	return a, nil
}

func (s *Store) AccountByID(_ context.Context, id int64) (farm.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return farm.Account{}, farm.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) AccountByChatID(_ context.Context, chatID string) (farm.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byChat[chatID]
	if !ok {
		return farm.Account{}, farm.ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) listAccounts(keep func(farm.Account) bool) []farm.Account {
	out := make([]farm.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListAccounts(context.Context) ([]farm.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAccounts(func(farm.Account) bool { return true }), nil
}

func (s *Store) ListManagedAccounts(context.Context) ([]farm.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAccounts(func(a farm.Account) bool { return a.ManagerOn }), nil
}

func (s *Store) SetManager(_ context.Context, accountID int64, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return farm.ErrAccountNotFound
	}
	a.ManagerOn = on
	s.accounts[accountID] = a
	return nil
}

func (s *Store) SetAdmin(_ context.Context, accountID int64, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return farm.ErrAccountNotFound
	}
	a.IsAdmin = admin
	s.accounts[accountID] = a
	return nil
}

func (s *Store) AppendLedgerEntry(_ context.Context, e farm.LedgerEntry) (farm.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[e.AccountID]; !ok {
		return farm.LedgerEntry{}, farm.ErrAccountNotFound
	}
	s.nextEntry++
	e.ID = s.nextEntry
	s.ledger = append(s.ledger, e)
	return e, nil
}

func (s *Store) balance(accountID int64) int64 {
	var total int64
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			total += e.Amount
		}
	}
	return total
}

func (s *Store) Balance(_ context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance(accountID), nil
}

func (s *Store) LedgerEntries(_ context.Context, accountID int64) ([]farm.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []farm.LedgerEntry{}
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]farm.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]farm.LeaderboardRow, 0, len(s.accounts))
	for _, a := range s.accounts {
		rows = append(rows, farm.LeaderboardRow{AccountID: a.ID, Username: a.Username, Balance: s.balance(a.ID)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Balance != rows[j].Balance {
			return rows[i].Balance > rows[j].Balance
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows, nil
}

func (s *Store) ListPlants(context.Context) ([]farm.PlantDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]farm.PlantDefinition, 0, len(s.plants))
	for _, p := range s.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListUpgrades(context.Context) ([]farm.UpgradeDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]farm.UpgradeDefinition, 0, len(s.upgrades))
	for _, u := range s.upgrades {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SeedCatalog(_ context.Context, plants []farm.PlantDefinition, upgrades []farm.UpgradeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.upgrades) == 0 {
		for _, u := range upgrades {
			s.upgrades[u.ID] = u
		}
	}
	if len(s.plants) == 0 {
		for _, p := range plants {
			s.plants[p.ID] = p
		}
	}
	return nil
}

// PutPlant replaces or removes catalog rows; tests use it to simulate
// catalog gaps.
func (s *Store) PutPlant(p farm.PlantDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plants[p.ID] = p
}

func (s *Store) DeletePlant(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plants, id)
}

func (s *Store) OwnedUpgradeIDs(_ context.Context, accountID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int64{}
	for _, o := range s.owned {
		if o.AccountID == accountID {
			out = append(out, o.UpgradeID)
		}
	}
	return out, nil
}

func (s *Store) AddOwnedUpgrade(_ context.Context, o farm.OwnedUpgrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned = append(s.owned, o)
	return nil
}

func (s *Store) InsertBatch(_ context.Context, b farm.CropBatch) (farm.CropBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBatch++
	b.ID = s.nextBatch
	s.batches[b.ID] = b
	return b, nil
}

func (s *Store) filterBatches(keep func(farm.CropBatch) bool) []farm.CropBatch {
	out := []farm.CropBatch{}
	for _, b := range s.batches {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) BatchesByAccount(_ context.Context, accountID int64) ([]farm.CropBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBatches(func(b farm.CropBatch) bool { return b.AccountID == accountID }), nil
}

func (s *Store) BatchesByStatus(_ context.Context, status farm.CropStatus) ([]farm.CropBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBatches(func(b farm.CropBatch) bool { return b.Status == status }), nil
}

func (s *Store) AccountBatchesByStatus(_ context.Context, accountID int64, status farm.CropStatus) ([]farm.CropBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBatches(func(b farm.CropBatch) bool {
		return b.AccountID == accountID && b.Status == status
	}), nil
}

func (s *Store) OccupiedSlots(_ context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return farm.OccupiedSlots(s.filterBatches(func(b farm.CropBatch) bool { return b.AccountID == accountID })), nil
}

func (s *Store) TransitionBatch(_ context.Context, batchID int64, from, to farm.CropStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	s.batches[batchID] = b
	return true, nil
}

func (s *Store) AutoPlantPreference(_ context.Context, accountID int64) (farm.AutoPlantPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plantID, ok := s.autoPlant[accountID]
	if !ok {
		return farm.AutoPlantPreference{}, farm.ErrNoAutoPlant
	}
	return farm.AutoPlantPreference{AccountID: accountID, PlantID: plantID}, nil
}

func (s *Store) SetAutoPlantPreference(_ context.Context, p farm.AutoPlantPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[p.AccountID]; !ok {
		return farm.ErrAccountNotFound
	}
	s.autoPlant[p.AccountID] = p.PlantID
	return nil
}
