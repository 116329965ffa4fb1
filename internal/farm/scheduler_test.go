package farm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
)

func TestSweepPromotesOnceAndNotifiesOncePerAccount(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx := context.Background()
	acct := h.register(t, "chat-1")

	for i := 0; i < 3; i++ {
		_, err := h.svc.Plant(ctx, farm.PlantInput{AccountID: acct.ID, PlantID: peaID, Quantity: 5})
		require.NoError(t, err)
	}

	report, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Promoted)
	assert.Empty(t, report.Notified)

	h.clock.Advance(time.Minute)
	report, err = h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Promoted)
	assert.Equal(t, []int64{acct.ID}, report.Notified)

	report, err = h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Promoted)
	assert.Empty(t, report.Notified)

	ready := 0
	for _, k := range h.sink.kinds(acct.ID) {
		if k == farm.KindCropsReady {
			ready++
		}
	}
	assert.Equal(t, 1, ready)

	// Crops stay ready until the owner harvests; no manager is hired.
	batches, err := h.store.AccountBatchesByStatus(ctx, acct.ID, farm.StatusReady)
	require.NoError(t, err)
	assert.Len(t, batches, 3)
	assert.Empty(t, report.Harvested)
}

func TestSweepDeliveryFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx := context.Background()
	a := h.register(t, "a")
	b := h.register(t, "b")
	for _, id := range []int64{a.ID, b.ID} {
		_, err := h.svc.Plant(ctx, farm.PlantInput{AccountID: id, PlantID: peaID, Quantity: 1})
		require.NoError(t, err)
	}
	h.sink.fail[farm.KindCropsReady] = true
	h.clock.Advance(time.Minute)

	report, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Promoted)
	assert.Equal(t, 2, report.DeliveryErrors)
	assert.Empty(t, report.Notified)
}

func TestSweepManagerHarvestsThenReplants(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx := context.Background()
	acct := h.register(t, "chat-1")
	h.grant(t, acct.ID, 100)
	h.own(t, acct.ID, 6)
	_, err := h.svc.SetManager(ctx, acct.ID, true)
	require.NoError(t, err)
	require.NoError(t, h.svc.SetAutoPlant(ctx, acct.ID, 1))

	_, err = h.svc.Plant(ctx, farm.PlantInput{AccountID: acct.ID, PlantID: 1, Quantity: 50})
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)

	report, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, []int64{acct.ID}, report.Harvested)
	assert.Equal(t, []int64{acct.ID}, report.Replanted)

	// 50 wheat at normal season: 80 units sold for 80, payroll 6, then the
	// replant fills all 100 default slots.
	balance, err := h.svc.Balance(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150-50+80-6-100), balance)

	planted, err := h.store.AccountBatchesByStatus(ctx, acct.ID, farm.StatusPlanted)
	require.NoError(t, err)
	require.Len(t, planted, 1)
	assert.Equal(t, int64(100), planted[0].Quantity)
	h.assertLedgerConsistent(t, acct.ID)

	// Plot is full: the next tick is a silent no-op for auto-plant.
	report, err = h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Replanted)
	assert.Empty(t, report.Harvested)
}

func TestSweepSkipsAccountsWithoutManager(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx := context.Background()
	acct := h.register(t, "chat-1")
	require.NoError(t, h.svc.SetAutoPlant(ctx, acct.ID, 1))

	report, err := h.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Replanted)

	batches, err := h.store.BatchesByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestSweepAndUserHarvestCreditOnce(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx := context.Background()
	acct := h.register(t, "chat-1")
	h.grant(t, acct.ID, 1000)
	h.own(t, acct.ID, 6)
	_, err := h.svc.SetManager(ctx, acct.ID, true)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := h.svc.Plant(ctx, farm.PlantInput{AccountID: acct.ID, PlantID: peaID, Quantity: 5})
		require.NoError(t, err)
	}
	h.clock.Advance(time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = h.svc.Sweep(ctx)
	}()
	go func() {
		defer wg.Done()
		_, _ = h.svc.Harvest(ctx, acct.ID)
	}()
	wg.Wait()

	entries, err := h.svc.Ledger(ctx, acct.ID)
	require.NoError(t, err)
	sales := 0
	for _, e := range entries {
		if e.Reason == farm.ReasonHarvestSale {
			sales++
		}
	}
	assert.Equal(t, 10, sales)
	h.assertLedgerConsistent(t, acct.ID)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, farm.FixedEvent(farm.EventNormalSeason), nil)
	ctx, cancel := context.WithCancel(context.Background())
	sched := farm.NewScheduler(h.svc, 5*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
