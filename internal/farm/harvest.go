package farm

import (
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"
)

type HarvestEvent string

const (
	EventExtremeDisaster HarvestEvent = "extreme_disaster"
	EventMildDisaster    HarvestEvent = "mild_disaster"
	EventMinimumHarvest  HarvestEvent = "minimum_harvest"
	EventNormalSeason    HarvestEvent = "normal_season"
	EventGoodSeason      HarvestEvent = "good_season"
)

type weightedEvent struct {
	event  HarvestEvent
	weight int
}

// Relative weights; they need not sum to any particular total.
var harvestEventWeights = []weightedEvent{
	{EventExtremeDisaster, 1},
	{EventMildDisaster, 4},
	{EventMinimumHarvest, 15},
	{EventNormalSeason, 60},
	{EventGoodSeason, 20},
}

// pickEvent maps a uniform draw in [0,1) onto the weighted table.
func pickEvent(u float64) HarvestEvent {
	total := 0
	for _, w := range harvestEventWeights {
		total += w.weight
	}
	target := u * float64(total)
	acc := 0.0
	for _, w := range harvestEventWeights {
		acc += float64(w.weight)
		if target < acc {
			return w.event
		}
	}
	return harvestEventWeights[len(harvestEventWeights)-1].event
}

type EventSource interface {
	Next() HarvestEvent
}

type RandomEvents struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewRandomEvents(seed int64) *RandomEvents {
	return &RandomEvents{rand: mathrand.New(mathrand.NewSource(seed))}
}

func (r *RandomEvents) Next() HarvestEvent {
	r.mu.Lock()
	u := r.rand.Float64()
	r.mu.Unlock()
	return pickEvent(u)
}

// FixedEvent always yields the same event.
type FixedEvent HarvestEvent

func (f FixedEvent) Next() HarvestEvent { return HarvestEvent(f) }

// SequenceEvents yields events in order and then repeats the last one.
type SequenceEvents struct {
	mu     sync.Mutex
	events []HarvestEvent
	i      int
}

func NewSequenceEvents(events ...HarvestEvent) *SequenceEvents {
	return &SequenceEvents{events: events}
}

func (s *SequenceEvents) Next() HarvestEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return EventNormalSeason
	}
	e := s.events[s.i]
	if s.i < len(s.events)-1 {
		s.i++
	}
	return e
}

// Yield computes the harvested units for one batch under event. flavor is
// the outcome actually applied: below the wealth threshold both disasters
// fall back to the minimum-ratio harvest.
func Yield(event HarvestEvent, quantity int64, p PlantDefinition, balance, wealthThreshold int64) (units int64, flavor HarvestEvent) {
	q := float64(quantity)
	wealthy := balance >= wealthThreshold
	switch event {
	case EventExtremeDisaster:
		if wealthy {
			return 0, EventExtremeDisaster
		}
		return ceilUnits(q * p.MinRatio), EventMinimumHarvest
	case EventMildDisaster:
		if wealthy {
			return int64(q * p.MinRatio * 0.5), EventMildDisaster
		}
		return ceilUnits(q * p.MinRatio), EventMinimumHarvest
	case EventMinimumHarvest:
		return ceilUnits(q * p.MinRatio), EventMinimumHarvest
	case EventGoodSeason:
		return ceilUnits(q * p.MaxRatio), EventGoodSeason
	default:
		return ceilUnits(q * (p.MinRatio + p.MaxRatio) / 2), EventNormalSeason
	}
}

type HarvestOutcome struct {
	Batch     CropBatch    `json:"batch"`
	PlantName string       `json:"plant_name"`
	Event     HarvestEvent `json:"event"`
	Flavor    HarvestEvent `json:"flavor"`
	Units     int64        `json:"units"`
	Revenue   int64        `json:"revenue"`
	Payroll   int64        `json:"payroll"`

	entries       []LedgerEntry
	notifications []Notification
}

type HarvestPlan struct {
	Outcomes []HarvestOutcome
	Missing  []CropBatch
}

// Rules are the tunable economy constants.
type Rules struct {
	RegistrationBonus int64
	WealthThreshold   int64
	PayrollBps        int64
	LeaderboardSize   int
	AdminChatIDs      []string
}

func DefaultRules() Rules {
	return Rules{
		RegistrationBonus: DefaultRegistrationBonus,
		WealthThreshold:   DefaultWealthThreshold,
		PayrollBps:        DefaultPayrollBps,
		LeaderboardSize:   DefaultLeaderboardSize,
	}
}

// PlanHarvest resolves every ReadyForHarvest batch of one account into the
// ledger entries and notifications it produces. It has no side effects.
// balance is read once before the pass and drives the disaster override.
func PlanHarvest(acct Account, balance int64, batches []CropBatch, plants PlantLookup, events EventSource, rules Rules, now time.Time) HarvestPlan {
	var plan HarvestPlan
	for _, b := range batches {
		if b.Status != StatusReady {
			continue
		}
		p, ok := plants.Plant(b.PlantID)
		if !ok {
			plan.Missing = append(plan.Missing, b)
			continue
		}
		event := events.Next()
		units, flavor := Yield(event, b.Quantity, p, balance, rules.WealthThreshold)
		out := HarvestOutcome{
			Batch:     b,
			PlantName: p.Name,
			Event:     event,
			Flavor:    flavor,
			Units:     units,
			Revenue:   units * p.SellPrice,
		}
		base := Notification{AccountID: acct.ID, ChatID: acct.ChatID, PlantName: p.Name, Emoji: p.Emoji}

		flavorNote := base
		flavorNote.Kind = KindHarvestEvent
		flavorNote.Event = flavor
		out.notifications = append(out.notifications, flavorNote)

		if out.Revenue > 0 {
			out.entries = append(out.entries, LedgerEntry{
				AccountID:   acct.ID,
				Amount:      out.Revenue,
				Reason:      ReasonHarvestSale,
				Description: fmt.Sprintf("Harvested %s %s(s).", formatAmount(units), p.Name),
				CreatedAt:   now,
			})
			result := base
			result.Kind = KindHarvested
			if acct.ManagerOn {
				result.Kind = KindManagerHarvested
			}
			result.Quantity = units
			result.Amount = out.Revenue
			out.notifications = append(out.notifications, result)
		}

		if acct.ManagerOn && out.Revenue > 0 {
			out.Payroll = Payroll(out.Revenue, rules.PayrollBps)
			out.entries = append(out.entries, LedgerEntry{
				AccountID:   acct.ID,
				Amount:      -out.Payroll,
				Reason:      ReasonManagerPayroll,
				Description: fmt.Sprintf("Manager payroll for harvesting %s %s(s).", formatAmount(units), p.Name),
				CreatedAt:   now,
			})
			payroll := base
			payroll.Kind = KindPayroll
			payroll.Quantity = units
			payroll.Amount = out.Payroll
			out.notifications = append(out.notifications, payroll)
		}
		plan.Outcomes = append(plan.Outcomes, out)
	}
	return plan
}
