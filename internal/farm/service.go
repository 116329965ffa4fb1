package farm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Service struct {
	store    Store
	catalog  *Catalog
	notifier Notifier
	clock    Clock
	events   EventSource
	log      *slog.Logger
	rules    Rules
	locks    accountLocks
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithEventSource(e EventSource) Option {
	return func(s *Service) { s.events = e }
}

func WithRules(r Rules) Option {
	return func(s *Service) { s.rules = r }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(store Store, catalog *Catalog, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		catalog:  catalog,
		notifier: discardNotifier{},
		clock:    SystemClock{},
		events:   NewRandomEvents(time.Now().UnixNano()),
		log:      logger,
		rules:    DefaultRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rules.LeaderboardSize <= 0 {
		s.rules.LeaderboardSize = DefaultLeaderboardSize
	}
	return s
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) Rules() Rules { return s.rules }

// accountLocks serializes plant, harvest and upgrade per account so the
// scheduler and user commands never interleave on one account.
type accountLocks struct {
	mu    sync.Mutex
	byAcc map[int64]*sync.Mutex
}

func (l *accountLocks) lock(accountID int64) func() {
	l.mu.Lock()
	if l.byAcc == nil {
		l.byAcc = make(map[int64]*sync.Mutex)
	}
	m, ok := l.byAcc[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.byAcc[accountID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Service) deliver(ctx context.Context, n Notification) bool {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification delivery failed", "account_id", n.AccountID, "kind", n.Kind, "err", err)
		return false
	}
	return true
}

func (s *Service) isAdminChat(chatID string) bool {
	for _, id := range s.rules.AdminChatIDs {
		if strings.TrimSpace(id) == chatID {
			return true
		}
	}
	return false
}

// Register returns the account for chatID, creating it with the registration
// bonus on first contact. created is false when the account already existed.
func (s *Service) Register(ctx context.Context, chatID, username string) (acct Account, created bool, err error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return Account{}, false, ErrChatIDRequired
	}
	acct, err = s.store.AccountByChatID(ctx, chatID)
	if err == nil {
		return acct, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, false, err
	}

	now := s.clock.Now()
	acct, err = s.store.CreateAccount(ctx, Account{
		ChatID:    chatID,
		Username:  strings.TrimSpace(username),
		CreatedAt: now,
		IsAdmin:   s.isAdminChat(chatID),
	})
	if errors.Is(err, ErrAccountExists) {
		acct, err = s.store.AccountByChatID(ctx, chatID)
		return acct, false, err
	}
	if err != nil {
		return Account{}, false, fmt.Errorf("create account: %w", err)
	}

	if s.rules.RegistrationBonus > 0 {
		if _, err := s.store.AppendLedgerEntry(ctx, LedgerEntry{
			AccountID:   acct.ID,
			Amount:      s.rules.RegistrationBonus,
			Reason:      ReasonRegistration,
			Description: "Registration bonus.",
			CreatedAt:   now,
		}); err != nil {
			return acct, true, fmt.Errorf("registration bonus: %w", err)
		}
	}
	s.log.Info("account registered", "account_id", acct.ID, "admin", acct.IsAdmin)
	s.deliver(ctx, Notification{AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindRegistered, Amount: s.rules.RegistrationBonus})
	return acct, true, nil
}

func (s *Service) Account(ctx context.Context, accountID int64) (Account, error) {
	return s.store.AccountByID(ctx, accountID)
}

func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, accountID)
}

// Ledger lists the account's entries oldest first.
func (s *Service) Ledger(ctx context.Context, accountID int64) ([]LedgerEntry, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.LedgerEntries(ctx, accountID)
}

func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	return s.store.Leaderboard(ctx, s.rules.LeaderboardSize)
}

func (s *Service) owned(ctx context.Context, accountID int64) ([]UpgradeDefinition, error) {
	ids, err := s.store.OwnedUpgradeIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("owned upgrades: %w", err)
	}
	return s.catalog.resolveOwned(ids), nil
}

func ownsUpgrade(owned []UpgradeDefinition, id int64) bool {
	for _, u := range owned {
		if u.ID == id {
			return true
		}
	}
	return false
}

// plantFor resolves a plant and checks the account holds its unlock upgrade.
func (s *Service) plantFor(plantID int64, owned []UpgradeDefinition) (PlantDefinition, error) {
	p, ok := s.catalog.Plant(plantID)
	if !ok {
		return PlantDefinition{}, ErrPlantNotFound
	}
	if p.Gated() && !ownsUpgrade(owned, p.UnlockUpgradeID) {
		return PlantDefinition{}, ErrPlantLocked
	}
	return p, nil
}

// promote moves the account's due Planted batches to ReadyForHarvest and
// returns all of its batches with their current status.
func (s *Service) promote(ctx context.Context, accountID int64) ([]CropBatch, error) {
	batches, err := s.store.BatchesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	due, missing := PlanReadiness(batches, s.catalog, s.clock.Now())
	for _, b := range missing {
		s.log.Error("crop batch references unknown plant", "account_id", accountID, "batch_id", b.ID, "plant_id", b.PlantID)
	}
	promoted := make(map[int64]bool, len(due))
	for _, b := range due {
		if _, err := s.store.TransitionBatch(ctx, b.ID, StatusPlanted, StatusReady); err != nil {
			return nil, fmt.Errorf("promote batch %d: %w", b.ID, err)
		}
		promoted[b.ID] = true
	}
	for i := range batches {
		if promoted[batches[i].ID] {
			batches[i].Status = StatusReady
		}
	}
	return batches, nil
}

// Status runs the readiness check for one account and reports its farm.
func (s *Service) Status(ctx context.Context, accountID int64) (FarmStatus, error) {
	acct, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return FarmStatus{}, err
	}
	batches, err := s.promote(ctx, accountID)
	if err != nil {
		return FarmStatus{}, err
	}
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return FarmStatus{}, err
	}
	balance, err := s.store.Balance(ctx, accountID)
	if err != nil {
		return FarmStatus{}, err
	}

	now := s.clock.Now()
	st := FarmStatus{
		AccountID:      acct.ID,
		Balance:        balance,
		PlotTier:       EffectiveTier(owned, CategoryPlot),
		ManagerTier:    EffectiveTier(owned, CategoryManager),
		ManagerOn:      acct.ManagerOn,
		OccupiedSlots:  OccupiedSlots(batches),
		AvailableSlots: AvailableSlots(EffectiveTier(owned, CategoryPlot)),
		Batches:        []BatchView{},
	}
	for _, b := range batches {
		if b.Status.Occupying() {
			st.Batches = append(st.Batches, viewBatch(b, s.catalog, now))
		}
	}
	return st, nil
}

type capacity struct {
	owned    []UpgradeDefinition
	balance  int64
	occupied int64
	free     int64
}

func (s *Service) capacity(ctx context.Context, accountID int64) (capacity, error) {
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return capacity{}, err
	}
	balance, err := s.store.Balance(ctx, accountID)
	if err != nil {
		return capacity{}, fmt.Errorf("balance: %w", err)
	}
	occupied, err := s.store.OccupiedSlots(ctx, accountID)
	if err != nil {
		return capacity{}, fmt.Errorf("occupied slots: %w", err)
	}
	free := AvailableSlots(EffectiveTier(owned, CategoryPlot)) - occupied
	if free < 0 {
		free = 0
	}
	return capacity{owned: owned, balance: balance, occupied: occupied, free: free}, nil
}

func (s *Service) MaxPlantable(ctx context.Context, accountID, plantID int64) (Plantable, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return Plantable{}, err
	}
	c, err := s.capacity(ctx, accountID)
	if err != nil {
		return Plantable{}, err
	}
	p, err := s.plantFor(plantID, c.owned)
	if err != nil {
		return Plantable{}, err
	}
	byBalance, bySlots, max := MaxPlantable(c.balance, p.SeedCost, c.free)
	return Plantable{PlantID: p.ID, ByBalance: byBalance, BySlots: bySlots, Max: max}, nil
}

// PlantingOptions lists the plants the account may sow, optionally limited to
// one category.
func (s *Service) PlantingOptions(ctx context.Context, accountID int64, category string) ([]PlantDefinition, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return nil, err
	}
	plants := s.catalog.Plants()
	if category != "" {
		plants = s.catalog.PlantsInCategory(category)
	}
	out := make([]PlantDefinition, 0, len(plants))
	for _, p := range plants {
		if !p.Gated() || ownsUpgrade(owned, p.UnlockUpgradeID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Plant(ctx context.Context, in PlantInput) (PlantResult, error) {
	unlock := s.locks.lock(in.AccountID)
	defer unlock()

	acct, err := s.store.AccountByID(ctx, in.AccountID)
	if err != nil {
		return PlantResult{}, err
	}
	return s.plant(ctx, acct, in, true)
}

// plant validates plant, then affordability, then capacity, and stops at the
// first failure. Callers hold the account lock.
func (s *Service) plant(ctx context.Context, acct Account, in PlantInput, announce bool) (PlantResult, error) {
	c, err := s.capacity(ctx, acct.ID)
	if err != nil {
		return PlantResult{}, err
	}
	p, err := s.plantFor(in.PlantID, c.owned)
	if err != nil {
		return PlantResult{}, err
	}

	qty := in.Quantity
	if in.Max {
		byBalance, _, max := MaxPlantable(c.balance, p.SeedCost, c.free)
		if max <= 0 {
			err := ErrInsufficientSlots
			if byBalance <= 0 {
				err = ErrInsufficientFunds
			}
			return PlantResult{}, s.plantRejected(ctx, acct, p, err, announce)
		}
		qty = max
	} else if qty <= 0 {
		return PlantResult{}, ErrInvalidQuantity
	}

	affordable := c.balance >= 0 && (p.SeedCost == 0 || qty <= c.balance/p.SeedCost)
	if !affordable {
		return PlantResult{}, s.plantRejected(ctx, acct, p, ErrInsufficientFunds, announce)
	}
	if qty > c.free {
		return PlantResult{}, s.plantRejected(ctx, acct, p, ErrInsufficientSlots, announce)
	}

	now := s.clock.Now()
	cost := qty * p.SeedCost
	if cost > 0 {
		if _, err := s.store.AppendLedgerEntry(ctx, LedgerEntry{
			AccountID:   acct.ID,
			Amount:      -cost,
			Reason:      ReasonSeedPurchase,
			Description: fmt.Sprintf("Planted %s %s(s).", formatAmount(qty), p.Name),
			CreatedAt:   now,
		}); err != nil {
			return PlantResult{}, fmt.Errorf("debit seeds: %w", err)
		}
	}
	batch, err := s.store.InsertBatch(ctx, CropBatch{
		AccountID: acct.ID,
		PlantID:   p.ID,
		Quantity:  qty,
		PlantedAt: now,
		Status:    StatusPlanted,
	})
	if err != nil {
		return PlantResult{}, fmt.Errorf("insert batch: %w", err)
	}

	s.log.Info("crops planted", "account_id", acct.ID, "plant_id", p.ID, "batch_id", batch.ID, "quantity", qty, "cost", cost)
	s.deliver(ctx, Notification{
		AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindPlanted,
		PlantName: p.Name, Emoji: p.Emoji, Quantity: qty, Amount: cost,
	})
	return PlantResult{Batch: batch, Cost: cost, Balance: c.balance - cost}, nil
}

func (s *Service) plantRejected(ctx context.Context, acct Account, p PlantDefinition, err error, announce bool) error {
	if !announce {
		return err
	}
	kind := KindInsufficientBalance
	if errors.Is(err, ErrInsufficientSlots) {
		kind = KindInsufficientSlots
	}
	s.deliver(ctx, Notification{AccountID: acct.ID, ChatID: acct.ChatID, Kind: kind, PlantName: p.Name, Emoji: p.Emoji})
	return err
}

// Harvest runs the readiness check and resolves every ready batch.
func (s *Service) Harvest(ctx context.Context, accountID int64) (HarvestResult, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	acct, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return HarvestResult{}, err
	}
	return s.harvest(ctx, acct)
}

func (s *Service) harvest(ctx context.Context, acct Account) (HarvestResult, error) {
	res := HarvestResult{AccountID: acct.ID, Outcomes: []HarvestOutcome{}}
	if _, err := s.promote(ctx, acct.ID); err != nil {
		return res, err
	}
	ready, err := s.store.AccountBatchesByStatus(ctx, acct.ID, StatusReady)
	if err != nil {
		return res, fmt.Errorf("ready batches: %w", err)
	}
	if len(ready) == 0 {
		return res, nil
	}
	balance, err := s.store.Balance(ctx, acct.ID)
	if err != nil {
		return res, fmt.Errorf("balance: %w", err)
	}

	now := s.clock.Now()
	plan := PlanHarvest(acct, balance, ready, s.catalog, s.events, s.rules, now)
	for _, b := range plan.Missing {
		derr := &DataError{BatchID: b.ID, PlantID: b.PlantID}
		s.log.Error("skipping harvest of batch", "account_id", acct.ID, "batch_id", b.ID, "plant_id", b.PlantID, "err", derr)
		res.DataErrors = append(res.DataErrors, derr.Error())
		s.deliver(ctx, Notification{AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindDataError, Text: derr.Error()})
	}

	for _, out := range plan.Outcomes {
		claimed, err := s.store.TransitionBatch(ctx, out.Batch.ID, StatusReady, StatusHarvested)
		if err != nil {
			return res, fmt.Errorf("harvest batch %d: %w", out.Batch.ID, err)
		}
		if !claimed {
			s.log.Warn("batch already harvested", "account_id", acct.ID, "batch_id", out.Batch.ID)
			continue
		}
		for i, e := range out.entries {
			if _, err := s.store.AppendLedgerEntry(ctx, e); err != nil {
				// The batch is already Harvested; this line is the only record
				// of what the account is owed.
				s.log.Error("harvest ledger write failed; batch needs manual credit",
					"account_id", acct.ID,
					"batch_id", out.Batch.ID,
					"plant_id", out.Batch.PlantID,
					"units", out.Units,
					"revenue", out.Revenue,
					"payroll", out.Payroll,
					"entries_written", i,
					"err", err,
				)
				return res, fmt.Errorf("harvest ledger for batch %d: %w", out.Batch.ID, err)
			}
		}
		for _, n := range out.notifications {
			s.deliver(ctx, n)
		}
		res.Revenue += out.Revenue
		res.Payroll += out.Payroll
		res.Outcomes = append(res.Outcomes, out)
	}
	if len(res.Outcomes) > 0 {
		s.log.Info("harvest complete", "account_id", acct.ID, "batches", len(res.Outcomes), "revenue", res.Revenue, "payroll", res.Payroll)
	}
	return res, nil
}

// BuyUpgrade debits the price and records ownership. Lower tiers may be
// bought after higher ones; the effective tier stays the maximum.
func (s *Service) BuyUpgrade(ctx context.Context, accountID, upgradeID int64) (UpgradeResult, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	acct, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return UpgradeResult{}, err
	}
	u, ok := s.catalog.Upgrade(upgradeID)
	if !ok {
		return UpgradeResult{}, ErrUpgradeNotFound
	}
	balance, err := s.store.Balance(ctx, accountID)
	if err != nil {
		return UpgradeResult{}, fmt.Errorf("balance: %w", err)
	}
	if u.Price > balance {
		s.deliver(ctx, Notification{
			AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindUpgradeFailed,
			Category: u.Category, Level: u.Level, Amount: u.Price,
		})
		return UpgradeResult{}, ErrInsufficientFunds
	}

	now := s.clock.Now()
	if u.Price > 0 {
		if _, err := s.store.AppendLedgerEntry(ctx, LedgerEntry{
			AccountID:   acct.ID,
			Amount:      -u.Price,
			Reason:      ReasonUpgradePurchase,
			Description: fmt.Sprintf("Bought %s upgrade level %d.", u.Category, u.Level),
			CreatedAt:   now,
		}); err != nil {
			return UpgradeResult{}, fmt.Errorf("debit upgrade: %w", err)
		}
	}
	if err := s.store.AddOwnedUpgrade(ctx, OwnedUpgrade{AccountID: acct.ID, UpgradeID: u.ID, CreatedAt: now}); err != nil {
		return UpgradeResult{}, fmt.Errorf("record upgrade: %w", err)
	}

	s.log.Info("upgrade purchased", "account_id", acct.ID, "upgrade_id", u.ID, "category", u.Category, "level", u.Level)
	s.deliver(ctx, Notification{
		AccountID: acct.ID, ChatID: acct.ChatID, Kind: KindUpgradePurchased,
		Category: u.Category, Level: u.Level, Amount: u.Price, Text: u.Description,
	})
	return UpgradeResult{Upgrade: u, Balance: balance - u.Price}, nil
}

// NextUpgrade offers the plot or manager upgrade one level above the
// account's effective tier.
func (s *Service) NextUpgrade(ctx context.Context, accountID int64, category UpgradeCategory) (UpgradeOffer, error) {
	if category != CategoryPlot && category != CategoryManager {
		return UpgradeOffer{}, ErrInvalidCategory
	}
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return UpgradeOffer{}, err
	}
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return UpgradeOffer{}, err
	}
	tier := EffectiveTier(owned, category)
	next, ok := s.catalog.UpgradeAt(category, tier+1)
	if !ok {
		return UpgradeOffer{Category: category, CurrentLevel: tier}, ErrMaxTier
	}
	return UpgradeOffer{Category: category, CurrentLevel: tier, Next: next}, nil
}

func (s *Service) CropUnlocks(ctx context.Context, accountID int64) ([]CropUnlock, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := []CropUnlock{}
	for _, u := range s.catalog.UpgradesInCategory(CategoryCrops) {
		out = append(out, CropUnlock{
			Upgrade: u,
			Plants:  s.catalog.PlantsUnlockedBy(u.ID),
			Owned:   ownsUpgrade(owned, u.ID),
		})
	}
	return out, nil
}

// SetManager toggles automation. Enabling requires a manager upgrade.
func (s *Service) SetManager(ctx context.Context, accountID int64, on bool) (Account, error) {
	acct, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if on {
		owned, err := s.owned(ctx, accountID)
		if err != nil {
			return Account{}, err
		}
		if EffectiveTier(owned, CategoryManager) < 1 {
			return Account{}, ErrManagerLocked
		}
	}
	if err := s.store.SetManager(ctx, accountID, on); err != nil {
		return Account{}, fmt.Errorf("set manager: %w", err)
	}
	acct.ManagerOn = on
	s.log.Info("manager toggled", "account_id", accountID, "on", on)
	return acct, nil
}

func (s *Service) SetAutoPlant(ctx context.Context, accountID, plantID int64) error {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return err
	}
	owned, err := s.owned(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.plantFor(plantID, owned); err != nil {
		return err
	}
	return s.store.SetAutoPlantPreference(ctx, AutoPlantPreference{AccountID: accountID, PlantID: plantID})
}

func (s *Service) AutoPlant(ctx context.Context, accountID int64) (AutoPlantPreference, error) {
	if _, err := s.store.AccountByID(ctx, accountID); err != nil {
		return AutoPlantPreference{}, err
	}
	return s.store.AutoPlantPreference(ctx, accountID)
}

// Announce broadcasts text from an admin to every account. It returns how
// many deliveries succeeded.
func (s *Service) Announce(ctx context.Context, accountID int64, text string) (int, error) {
	sender, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !sender.IsAdmin {
		return 0, ErrNotAdmin
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyMessage
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	delivered := 0
	for _, a := range accounts {
		if s.deliver(ctx, Notification{AccountID: a.ID, ChatID: a.ChatID, Kind: KindAnnouncement, Text: text}) {
			delivered++
		}
	}
	s.log.Info("announcement sent", "account_id", accountID, "recipients", len(accounts), "delivered", delivered)
	return delivered, nil
}
