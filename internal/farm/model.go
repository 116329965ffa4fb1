package farm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultRegistrationBonus = int64(50)
	DefaultWealthThreshold   = int64(1_000_000_000)
	DefaultPayrollBps        = int64(800) // 8% of harvest revenue.
	DefaultLeaderboardSize   = 10

	DefaultSlots = int64(100)
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already registered")
	ErrChatIDRequired    = errors.New("chat id is required")
	ErrPlantNotFound     = errors.New("plant not found")
	ErrPlantLocked       = errors.New("plant locked: required upgrade not owned")
	ErrUpgradeNotFound   = errors.New("upgrade not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInsufficientSlots = errors.New("insufficient plot slots")
	ErrMaxTier           = errors.New("already at maximum tier")
	ErrInvalidQuantity   = errors.New("quantity must be a positive whole number or max")
	ErrManagerLocked     = errors.New("manager upgrade required")
	ErrNotAdmin          = errors.New("admin privileges required")
	ErrNoAutoPlant       = errors.New("no auto-planting preference set")
	ErrInvalidCategory   = errors.New("unknown upgrade category")
	ErrEmptyMessage      = errors.New("message must not be empty")
)

// DataError reports a crop batch whose plant is missing from the catalog.
type DataError struct {
	BatchID int64
	PlantID int64
}

func (e *DataError) Error() string {
	return fmt.Sprintf("batch %d references unknown plant %d", e.BatchID, e.PlantID)
}

var slotsByTier = map[int]int64{
	1: 1_000,
	2: 10_000,
	3: 100_000,
	4: 1_000_000,
	5: 10_000_000,
}

// AvailableSlots maps a plot tier to its slot ceiling. Unknown tiers,
// including 0, get DefaultSlots.
func AvailableSlots(tier int) int64 {
	if slots, ok := slotsByTier[tier]; ok {
		return slots
	}
	return DefaultSlots
}

// EffectiveTier is the highest level among owned upgrades in category, 0 if none.
func EffectiveTier(owned []UpgradeDefinition, category UpgradeCategory) int {
	tier := 0
	for _, u := range owned {
		if u.Category == category && u.Level > tier {
			tier = u.Level
		}
	}
	return tier
}

// OccupiedSlots sums quantities of batches that have not been harvested.
func OccupiedSlots(batches []CropBatch) int64 {
	var total int64
	for _, b := range batches {
		if b.Status.Occupying() {
			total += b.Quantity
		}
	}
	return total
}

// MaxPlantable returns min(balance div seedCost, freeSlots) along with both bounds.
func MaxPlantable(balance, seedCost, freeSlots int64) (byBalance, bySlots, max int64) {
	bySlots = freeSlots
	if seedCost <= 0 {
		byBalance = math.MaxInt64
	} else if balance > 0 {
		byBalance = balance / seedCost
	}
	max = byBalance
	if bySlots < max {
		max = bySlots
	}
	return byBalance, bySlots, max
}

// Payroll is floor(revenue * bps / 10000); zero for non-positive revenue.
func Payroll(revenue, bps int64) int64 {
	if revenue <= 0 || bps <= 0 {
		return 0
	}
	return revenue * bps / 10_000
}

// ceilUnits rounds any fractional remainder up, float error included:
// 100*1.1 evaluates to 110.00000000000001 and yields 111.
func ceilUnits(v float64) int64 {
	if v <= 0 {
		return 0
	}
	return int64(math.Ceil(v))
}

// ParseQuantity accepts "max" or a positive integer (thousands separators allowed).
func ParseQuantity(raw string) (qty int64, max bool, err error) {
	clean := strings.TrimSpace(raw)
	if strings.EqualFold(clean, "max") {
		return 0, true, nil
	}
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, "_", "")
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil || n <= 0 {
		return 0, false, ErrInvalidQuantity
	}
	return n, false, nil
}

func formatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
