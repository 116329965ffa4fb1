package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
	"ffarm/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "farm.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) farm.Store { return openTemp(t) })
}

func TestReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "farm.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	a, err := s.CreateAccount(ctx, farm.Account{ChatID: "77", Username: "sam"})
	require.NoError(t, err)
	_, err = s.AppendLedgerEntry(ctx, farm.LedgerEntry{AccountID: a.ID, Amount: 50, Reason: farm.ReasonRegistration})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.AccountByChatID(ctx, "77")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	balance, err := s.Balance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}
