package farm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Sweep runs one automation pass: promote due batches, notify each owner
// once, harvest for managed accounts, then replant their preferred crop.
// Per-account failures are logged and never stop the pass.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Notified: []int64{}, Harvested: []int64{}, Replanted: []int64{}}

	planted, err := s.store.BatchesByStatus(ctx, StatusPlanted)
	if err != nil {
		return report, fmt.Errorf("list planted batches: %w", err)
	}
	due, missing := PlanReadiness(planted, s.catalog, s.clock.Now())
	for _, b := range missing {
		report.DataErrors++
		s.log.Error("crop batch references unknown plant", "account_id", b.AccountID, "batch_id", b.ID, "plant_id", b.PlantID)
	}
	notify := make(map[int64]struct{})
	for _, b := range due {
		ok, err := s.store.TransitionBatch(ctx, b.ID, StatusPlanted, StatusReady)
		if err != nil {
			s.log.Error("promote batch failed", "account_id", b.AccountID, "batch_id", b.ID, "err", err)
			continue
		}
		if ok {
			report.Promoted++
			notify[b.AccountID] = struct{}{}
		}
	}

	for _, id := range sortedIDs(notify) {
		acct, err := s.store.AccountByID(ctx, id)
		if err != nil {
			report.DeliveryErrors++
			s.log.Warn("ready notification skipped", "account_id", id, "err", err)
			continue
		}
		if !s.deliver(ctx, Notification{AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindCropsReady}) {
			report.DeliveryErrors++
			continue
		}
		report.Notified = append(report.Notified, id)
	}

	managed, err := s.store.ListManagedAccounts(ctx)
	if err != nil {
		return report, fmt.Errorf("list managed accounts: %w", err)
	}
	for _, acct := range managed {
		res, err := s.harvestLocked(ctx, acct)
		report.DataErrors += len(res.DataErrors)
		if err != nil {
			s.log.Error("manager harvest failed", "account_id", acct.ID, "err", err)
			continue
		}
		if len(res.Outcomes) > 0 {
			report.Harvested = append(report.Harvested, acct.ID)
		}
	}

	for _, acct := range managed {
		planted, err := s.autoPlant(ctx, acct)
		if err != nil {
			s.log.Error("manager auto-plant failed", "account_id", acct.ID, "err", err)
			continue
		}
		if planted {
			report.Replanted = append(report.Replanted, acct.ID)
		}
	}
	return report, nil
}

func (s *Service) harvestLocked(ctx context.Context, acct Account) (HarvestResult, error) {
	unlock := s.locks.lock(acct.ID)
	defer unlock()
	return s.harvest(ctx, acct)
}

// autoPlant plants the maximum quantity of the preferred crop. No preference
// and no room or money are silent no-ops.
func (s *Service) autoPlant(ctx context.Context, acct Account) (bool, error) {
	pref, err := s.store.AutoPlantPreference(ctx, acct.ID)
	if errors.Is(err, ErrNoAutoPlant) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	unlock := s.locks.lock(acct.ID)
	defer unlock()
	_, err = s.plant(ctx, acct, PlantInput{AccountID: acct.ID, PlantID: pref.PlantID, Max: true}, false)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientSlots):
		return false, nil
	default:
		return false, err
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Scheduler runs Sweep on a fixed period until its context ends.
type Scheduler struct {
	svc   *Service
	every time.Duration
	log   *slog.Logger
}

func NewScheduler(svc *Service, every time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Scheduler{svc: svc, every: every, log: logger}
}

// Tick runs a single sweep. A tick that has started finishes even if ctx is
// cancelled mid-way.
func (s *Scheduler) Tick(ctx context.Context, tick int64) (SweepReport, error) {
	report, err := s.svc.Sweep(context.WithoutCancel(ctx))
	if err != nil {
		s.log.Error("sweep failed", "tick", tick, "err", err)
		return report, err
	}
	s.log.Info("sweep complete",
		"tick", tick,
		"promoted", report.Promoted,
		"notified", len(report.Notified),
		"harvested", len(report.Harvested),
		"replanted", len(report.Replanted),
		"data_errors", report.DataErrors,
		"delivery_errors", report.DeliveryErrors,
	)
	return report, nil
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	s.log.Info("scheduler started", "every", s.every.String())
	var tick int64
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutdown")
			return
		case <-ticker.C:
			tick++
			_, _ = s.Tick(ctx, tick)
		}
	}
}
