// Package storetest holds the behavior every farm.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
)

// Run exercises a fresh store from newStore in every subtest.
func Run(t *testing.T, newStore func(t *testing.T) farm.Store) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("leaderboard", func(t *testing.T) { testLeaderboard(t, newStore(t)) })
	t.Run("catalog", func(t *testing.T) { testCatalog(t, newStore(t)) })
	t.Run("upgrades", func(t *testing.T) { testUpgrades(t, newStore(t)) })
	t.Run("batches", func(t *testing.T) { testBatches(t, newStore(t)) })
	t.Run("autoplant", func(t *testing.T) { testAutoPlant(t, newStore(t)) })
}

var epoch = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

func mustAccount(t *testing.T, s farm.Store, chatID string) farm.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), farm.Account{ChatID: chatID, Username: "user-" + chatID, CreatedAt: epoch})
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	return a
}

func testAccounts(t *testing.T, s farm.Store) {
	ctx := context.Background()
	a := mustAccount(t, s, "100")
	b := mustAccount(t, s, "200")

	_, err := s.CreateAccount(ctx, farm.Account{ChatID: "100", CreatedAt: epoch})
	assert.ErrorIs(t, err, farm.ErrAccountExists)

	got, err := s.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", got.ChatID)
	assert.Equal(t, "user-100", got.Username)
	assert.False(t, got.ManagerOn)

	got, err = s.AccountByChatID(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.AccountByID(ctx, 99_999)
	assert.ErrorIs(t, err, farm.ErrAccountNotFound)
	_, err = s.AccountByChatID(ctx, "missing")
	assert.ErrorIs(t, err, farm.ErrAccountNotFound)

	require.NoError(t, s.SetManager(ctx, b.ID, true))
	require.NoError(t, s.SetAdmin(ctx, a.ID, true))

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.True(t, all[0].IsAdmin)

	managed, err := s.ListManagedAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, b.ID, managed[0].ID)
	assert.True(t, managed[0].ManagerOn)

	assert.ErrorIs(t, s.SetManager(ctx, 99_999, true), farm.ErrAccountNotFound)
}

func testLedger(t *testing.T, s farm.Store) {
	ctx := context.Background()
	a := mustAccount(t, s, "1")
	other := mustAccount(t, s, "2")

	balance, err := s.Balance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	amounts := []int64{50, -30, 120, -12}
	for i, amt := range amounts {
		e, err := s.AppendLedgerEntry(ctx, farm.LedgerEntry{
			AccountID: a.ID, Amount: amt, Reason: "test", Description: "entry",
			CreatedAt: epoch.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.NotZero(t, e.ID)
	}
	_, err = s.AppendLedgerEntry(ctx, farm.LedgerEntry{AccountID: other.ID, Amount: 7, Reason: "test", CreatedAt: epoch})
	require.NoError(t, err)

	balance, err = s.Balance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(128), balance)

	entries, err := s.LedgerEntries(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(amounts))
	for i, e := range entries {
		assert.Equal(t, amounts[i], e.Amount)
		assert.Equal(t, "test", e.Reason)
	}
}

func testLeaderboard(t *testing.T, s farm.Store) {
	ctx := context.Background()
	balances := []int64{10, 500, 0, 250}
	ids := make([]int64, len(balances))
	for i, bal := range balances {
		a := mustAccount(t, s, string(rune('a'+i)))
		ids[i] = a.ID
		if bal != 0 {
			_, err := s.AppendLedgerEntry(ctx, farm.LedgerEntry{AccountID: a.ID, Amount: bal, Reason: "test", CreatedAt: epoch})
			require.NoError(t, err)
		}
	}

	rows, err := s.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[1], rows[0].AccountID)
	assert.Equal(t, int64(500), rows[0].Balance)
	assert.Equal(t, int64(1), rows[0].Rank)
	assert.Equal(t, ids[3], rows[1].AccountID)
	assert.Equal(t, ids[0], rows[2].AccountID)
	assert.Equal(t, int64(3), rows[2].Rank)
	assert.Equal(t, "user-b", rows[0].Username)
}

func testCatalog(t *testing.T, s farm.Store) {
	ctx := context.Background()
	require.NoError(t, s.SeedCatalog(ctx, farm.DefaultPlants(), farm.DefaultUpgrades()))
	// A second seed never overwrites existing rows.
	require.NoError(t, s.SeedCatalog(ctx, []farm.PlantDefinition{{ID: 1, Name: "Impostor"}}, nil))

	plants, err := s.ListPlants(ctx)
	require.NoError(t, err)
	require.Len(t, plants, len(farm.DefaultPlants()))
	byID := map[int64]farm.PlantDefinition{}
	for _, p := range plants {
		byID[p.ID] = p
	}
	wheat := byID[1]
	assert.Equal(t, "Wheat", wheat.Name)
	assert.Equal(t, 2*time.Minute, wheat.HarvestDuration)
	assert.InDelta(t, 1.2, wheat.MinRatio, 1e-9)
	assert.Equal(t, int64(0), wheat.UnlockUpgradeID)
	assert.Equal(t, int64(7), byID[6].UnlockUpgradeID)
	assert.Equal(t, "🍓", byID[6].Emoji)

	upgrades, err := s.ListUpgrades(ctx)
	require.NoError(t, err)
	require.Len(t, upgrades, len(farm.DefaultUpgrades()))

	cat, err := farm.LoadCatalog(ctx, s)
	require.NoError(t, err)
	plot, ok := cat.UpgradeAt(farm.CategoryPlot, 3)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), plot.Price)
}

func testUpgrades(t *testing.T, s farm.Store) {
	ctx := context.Background()
	a := mustAccount(t, s, "1")

	ids, err := s.OwnedUpgradeIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []int64{2, 1, 2} {
		require.NoError(t, s.AddOwnedUpgrade(ctx, farm.OwnedUpgrade{AccountID: a.ID, UpgradeID: id, CreatedAt: epoch}))
	}
	ids, err = s.OwnedUpgradeIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 2}, ids)
}

func testBatches(t *testing.T, s farm.Store) {
	ctx := context.Background()
	a := mustAccount(t, s, "1")
	b := mustAccount(t, s, "2")

	insert := func(accountID int64, qty int64) farm.CropBatch {
		t.Helper()
		batch, err := s.InsertBatch(ctx, farm.CropBatch{
			AccountID: accountID, PlantID: 1, Quantity: qty, PlantedAt: epoch, Status: farm.StatusPlanted,
		})
		require.NoError(t, err)
		require.NotZero(t, batch.ID)
		return batch
	}
	first := insert(a.ID, 10)
	second := insert(a.ID, 20)
	third := insert(b.ID, 5)

	got, err := s.BatchesByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.WithinDuration(t, epoch, got[0].PlantedAt, time.Second)
	assert.Equal(t, farm.StatusPlanted, got[0].Status)

	ok, err := s.TransitionBatch(ctx, first.ID, farm.StatusPlanted, farm.StatusReady)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TransitionBatch(ctx, first.ID, farm.StatusPlanted, farm.StatusReady)
	require.NoError(t, err)
	assert.False(t, ok, "second transition from a stale status must not apply")
	ok, err = s.TransitionBatch(ctx, 99_999, farm.StatusPlanted, farm.StatusReady)
	require.NoError(t, err)
	assert.False(t, ok)

	planted, err := s.BatchesByStatus(ctx, farm.StatusPlanted)
	require.NoError(t, err)
	require.Len(t, planted, 2)
	assert.Equal(t, second.ID, planted[0].ID)
	assert.Equal(t, third.ID, planted[1].ID)

	ready, err := s.AccountBatchesByStatus(ctx, a.ID, farm.StatusReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, first.ID, ready[0].ID)

	occupied, err := s.OccupiedSlots(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), occupied)

	ok, err = s.TransitionBatch(ctx, first.ID, farm.StatusReady, farm.StatusHarvested)
	require.NoError(t, err)
	require.True(t, ok)
	occupied, err = s.OccupiedSlots(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), occupied)

	occupied, err = s.OccupiedSlots(ctx, 99_999)
	require.NoError(t, err)
	assert.Equal(t, int64(0), occupied)
}

func testAutoPlant(t *testing.T, s farm.Store) {
	ctx := context.Background()
	a := mustAccount(t, s, "1")

	_, err := s.AutoPlantPreference(ctx, a.ID)
	assert.ErrorIs(t, err, farm.ErrNoAutoPlant)

	require.NoError(t, s.SetAutoPlantPreference(ctx, farm.AutoPlantPreference{AccountID: a.ID, PlantID: 3}))
	require.NoError(t, s.SetAutoPlantPreference(ctx, farm.AutoPlantPreference{AccountID: a.ID, PlantID: 5}))

	pref, err := s.AutoPlantPreference(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pref.PlantID)
	assert.Equal(t, a.ID, pref.AccountID)
}
