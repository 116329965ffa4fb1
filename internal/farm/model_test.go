package farm

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestAvailableSlots(t *testing.T) {
	tests := []struct {
		tier int
		want int64
	}{
		{tier: 0, want: 100},
		{tier: 1, want: 1_000},
		{tier: 2, want: 10_000},
		{tier: 3, want: 100_000},
		{tier: 4, want: 1_000_000},
		{tier: 5, want: 10_000_000},
		{tier: 6, want: 100},
		{tier: -1, want: 100},
	}
	for _, tc := range tests {
		if got := AvailableSlots(tc.tier); got != tc.want {
			t.Fatalf("tier=%d got=%d want=%d", tc.tier, got, tc.want)
		}
	}
}

func TestEffectiveTierTakesMaximum(t *testing.T) {
	owned := []UpgradeDefinition{
		{ID: 2, Level: 2, Category: CategoryPlot},
		{ID: 1, Level: 1, Category: CategoryPlot},
		{ID: 6, Level: 1, Category: CategoryManager},
	}
	if got := EffectiveTier(owned, CategoryPlot); got != 2 {
		t.Fatalf("plot tier got=%d want=2", got)
	}
	if got := EffectiveTier(owned, CategoryManager); got != 1 {
		t.Fatalf("manager tier got=%d want=1", got)
	}
	if got := EffectiveTier(owned, CategoryCrops); got != 0 {
		t.Fatalf("crops tier got=%d want=0", got)
	}
}

func TestOccupiedSlotsIgnoresHarvested(t *testing.T) {
	batches := []CropBatch{
		{Quantity: 10, Status: StatusPlanted},
		{Quantity: 5, Status: StatusReady},
		{Quantity: 1000, Status: StatusHarvested},
	}
	if got := OccupiedSlots(batches); got != 15 {
		t.Fatalf("got=%d want=15", got)
	}
}

func TestMaxPlantable(t *testing.T) {
	tests := []struct {
		name                       string
		balance, seed, free        int64
		byBalance, bySlots, wanted int64
	}{
		{name: "balance binds", balance: 50, seed: 10, free: 1000, byBalance: 5, bySlots: 1000, wanted: 5},
		{name: "slots bind", balance: 5000, seed: 1, free: 100, byBalance: 5000, bySlots: 100, wanted: 100},
		{name: "broke", balance: 9, seed: 10, free: 100, byBalance: 0, bySlots: 100, wanted: 0},
		{name: "negative balance", balance: -20, seed: 10, free: 100, byBalance: 0, bySlots: 100, wanted: 0},
		{name: "full plot", balance: 100, seed: 1, free: 0, byBalance: 100, bySlots: 0, wanted: 0},
		{name: "free seeds", balance: 0, seed: 0, free: 42, byBalance: math.MaxInt64, bySlots: 42, wanted: 42},
	}
	for _, tc := range tests {
		b, s, m := MaxPlantable(tc.balance, tc.seed, tc.free)
		if b != tc.byBalance || s != tc.bySlots || m != tc.wanted {
			t.Fatalf("%s: got (%d,%d,%d) want (%d,%d,%d)", tc.name, b, s, m, tc.byBalance, tc.bySlots, tc.wanted)
		}
	}
}

func TestPayroll(t *testing.T) {
	if got := Payroll(150, DefaultPayrollBps); got != 12 {
		t.Fatalf("got=%d want=12", got)
	}
	if got := Payroll(12, DefaultPayrollBps); got != 0 {
		t.Fatalf("small revenue got=%d want=0", got)
	}
	if got := Payroll(0, DefaultPayrollBps); got != 0 {
		t.Fatalf("zero revenue got=%d want=0", got)
	}
}

func TestCeilUnits(t *testing.T) {
	qty, ratio := float64(100), 1.1
	tests := []struct {
		in   float64
		want int64
	}{
		{in: qty * ratio, want: 111},
		{in: 70, want: 70},
		{in: 75, want: 75},
		{in: 8.75, want: 9},
		{in: 0.01, want: 1},
		{in: 0, want: 0},
	}
	for _, tc := range tests {
		if got := ceilUnits(tc.in); got != tc.want {
			t.Fatalf("in=%v got=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	qty, max, err := ParseQuantity(" MAX ")
	if err != nil || !max || qty != 0 {
		t.Fatalf("max: got (%d,%v,%v)", qty, max, err)
	}
	qty, max, err = ParseQuantity("1,000")
	if err != nil || max || qty != 1000 {
		t.Fatalf("1,000: got (%d,%v,%v)", qty, max, err)
	}
	for _, raw := range []string{"", "0", "-3", "abc", "1.5", "ten"} {
		if _, _, err := ParseQuantity(raw); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected %q to fail with ErrInvalidQuantity, got %v", raw, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		1234567:   "1,234,567",
		-1000:     "-1,000",
		100000000: "100,000,000",
	}
	for in, want := range tests {
		if got := formatAmount(in); got != want {
			t.Fatalf("in=%d got=%q want=%q", in, got, want)
		}
	}
}

func TestMinutesRemaining(t *testing.T) {
	planted := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := CropBatch{PlantedAt: planted, Status: StatusPlanted}
	p := PlantDefinition{HarvestDuration: 2 * time.Minute}

	tests := []struct {
		elapsed time.Duration
		want    int64
	}{
		{elapsed: 0, want: 2},
		{elapsed: 30 * time.Second, want: 2},
		{elapsed: 61 * time.Second, want: 1},
		{elapsed: 119*time.Second + 500*time.Millisecond, want: 1},
		{elapsed: 2 * time.Minute, want: 0},
		{elapsed: time.Hour, want: 0},
	}
	for _, tc := range tests {
		if got := MinutesRemaining(b, p, planted.Add(tc.elapsed)); got != tc.want {
			t.Fatalf("elapsed=%s got=%d want=%d", tc.elapsed, got, tc.want)
		}
	}
}

func TestPlanReadiness(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cat := NewCatalog([]PlantDefinition{{ID: 1, HarvestDuration: time.Minute}}, nil)
	batches := []CropBatch{
		{ID: 1, PlantID: 1, PlantedAt: now.Add(-time.Minute), Status: StatusPlanted},
		{ID: 2, PlantID: 1, PlantedAt: now.Add(-30 * time.Second), Status: StatusPlanted},
		{ID: 3, PlantID: 1, PlantedAt: now.Add(-time.Hour), Status: StatusReady},
		{ID: 4, PlantID: 99, PlantedAt: now.Add(-time.Hour), Status: StatusPlanted},
	}
	due, missing := PlanReadiness(batches, cat, now)
	if len(due) != 1 || due[0].ID != 1 {
		t.Fatalf("due got=%+v", due)
	}
	if len(missing) != 1 || missing[0].ID != 4 {
		t.Fatalf("missing got=%+v", missing)
	}
}

func TestViewBatchLabels(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cat := NewCatalog([]PlantDefinition{{ID: 1, Name: "Wheat", HarvestDuration: 5 * time.Minute}}, nil)

	v := viewBatch(CropBatch{PlantID: 1, PlantedAt: now, Status: StatusPlanted}, cat, now.Add(90*time.Second))
	if v.Label != "4 mins left" || v.MinutesRemaining != 4 {
		t.Fatalf("planted label got=%q minutes=%d", v.Label, v.MinutesRemaining)
	}
	v = viewBatch(CropBatch{PlantID: 1, Status: StatusReady}, cat, now)
	if v.Label != "ready" {
		t.Fatalf("ready label got=%q", v.Label)
	}
	v = viewBatch(CropBatch{PlantID: 7, Status: StatusReady}, cat, now)
	if v.PlantName != "" || v.Label == "ready" {
		t.Fatalf("missing plant view got=%+v", v)
	}
}
