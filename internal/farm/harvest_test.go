package farm

import (
	"testing"
	"time"
)

func TestPickEventFollowsWeights(t *testing.T) {
	tests := []struct {
		u    float64
		want HarvestEvent
	}{
		{u: 0, want: EventExtremeDisaster},
		{u: 0.009, want: EventExtremeDisaster},
		{u: 0.011, want: EventMildDisaster},
		{u: 0.049, want: EventMildDisaster},
		{u: 0.06, want: EventMinimumHarvest},
		{u: 0.19, want: EventMinimumHarvest},
		{u: 0.25, want: EventNormalSeason},
		{u: 0.79, want: EventNormalSeason},
		{u: 0.85, want: EventGoodSeason},
		{u: 0.9999, want: EventGoodSeason},
	}
	for _, tc := range tests {
		if got := pickEvent(tc.u); got != tc.want {
			t.Fatalf("u=%v got=%s want=%s", tc.u, got, tc.want)
		}
	}
}

func TestRandomEventsDistribution(t *testing.T) {
	src := NewRandomEvents(42)
	counts := map[HarvestEvent]int{}
	const draws = 100_000
	for i := 0; i < draws; i++ {
		counts[src.Next()]++
	}
	// Normal season carries 60% of the weight; allow generous slack.
	if n := counts[EventNormalSeason]; n < 57_000 || n > 63_000 {
		t.Fatalf("normal season drawn %d times out of %d", n, draws)
	}
	if counts[EventExtremeDisaster] == 0 || counts[EventGoodSeason] == 0 {
		t.Fatalf("expected every event to appear, got %v", counts)
	}
}

func TestSequenceEventsRepeatsLast(t *testing.T) {
	src := NewSequenceEvents(EventGoodSeason, EventMildDisaster)
	got := []HarvestEvent{src.Next(), src.Next(), src.Next()}
	want := []HarvestEvent{EventGoodSeason, EventMildDisaster, EventMildDisaster}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw %d got=%s want=%s", i, got[i], want[i])
		}
	}
}

func TestYield(t *testing.T) {
	bean := PlantDefinition{MinRatio: 0.5, MaxRatio: 1.0}
	pea := PlantDefinition{MinRatio: 1.5, MaxRatio: 1.25}
	carrot := PlantDefinition{MinRatio: 1.1, MaxRatio: 1.8}
	const threshold = 1_000_000_000

	tests := []struct {
		name       string
		event      HarvestEvent
		qty        int64
		plant      PlantDefinition
		balance    int64
		wantUnits  int64
		wantFlavor HarvestEvent
	}{
		{name: "normal", event: EventNormalSeason, qty: 100, plant: bean, wantUnits: 75, wantFlavor: EventNormalSeason},
		{name: "good rounds up", event: EventGoodSeason, qty: 7, plant: pea, wantUnits: 9, wantFlavor: EventGoodSeason},
		{name: "minimum", event: EventMinimumHarvest, qty: 3, plant: bean, wantUnits: 2, wantFlavor: EventMinimumHarvest},
		{name: "minimum float residue rounds up", event: EventMinimumHarvest, qty: 100, plant: carrot, wantUnits: 111, wantFlavor: EventMinimumHarvest},
		{name: "extreme poor", event: EventExtremeDisaster, qty: 100, plant: bean, balance: 10, wantUnits: 50, wantFlavor: EventMinimumHarvest},
		{name: "extreme wealthy", event: EventExtremeDisaster, qty: 100, plant: bean, balance: threshold, wantUnits: 0, wantFlavor: EventExtremeDisaster},
		{name: "mild poor", event: EventMildDisaster, qty: 3, plant: pea, balance: threshold - 1, wantUnits: 5, wantFlavor: EventMinimumHarvest},
		{name: "mild wealthy truncates", event: EventMildDisaster, qty: 3, plant: pea, balance: threshold, wantUnits: 2, wantFlavor: EventMildDisaster},
	}
	for _, tc := range tests {
		units, flavor := Yield(tc.event, tc.qty, tc.plant, tc.balance, threshold)
		if units != tc.wantUnits || flavor != tc.wantFlavor {
			t.Fatalf("%s: got (%d,%s) want (%d,%s)", tc.name, units, flavor, tc.wantUnits, tc.wantFlavor)
		}
	}
}

func TestPlanHarvestManagerPayroll(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cat := NewCatalog([]PlantDefinition{{ID: 1, Name: "Bean", SellPrice: 2, MinRatio: 0.5, MaxRatio: 1.0}}, nil)
	acct := Account{ID: 9, ChatID: "c9", ManagerOn: true}
	batches := []CropBatch{
		{ID: 1, AccountID: 9, PlantID: 1, Quantity: 100, Status: StatusReady},
		{ID: 2, AccountID: 9, PlantID: 1, Quantity: 100, Status: StatusPlanted},
		{ID: 3, AccountID: 9, PlantID: 404, Quantity: 100, Status: StatusReady},
	}

	plan := PlanHarvest(acct, 0, batches, cat, FixedEvent(EventNormalSeason), DefaultRules(), now)
	if len(plan.Outcomes) != 1 {
		t.Fatalf("outcomes got=%d want=1", len(plan.Outcomes))
	}
	if len(plan.Missing) != 1 || plan.Missing[0].ID != 3 {
		t.Fatalf("missing got=%+v", plan.Missing)
	}
	out := plan.Outcomes[0]
	if out.Units != 75 || out.Revenue != 150 || out.Payroll != 12 {
		t.Fatalf("outcome got units=%d revenue=%d payroll=%d", out.Units, out.Revenue, out.Payroll)
	}
	if len(out.entries) != 2 || out.entries[0].Amount != 150 || out.entries[1].Amount != -12 {
		t.Fatalf("entries got=%+v", out.entries)
	}
	if out.entries[1].Reason != ReasonManagerPayroll {
		t.Fatalf("payroll reason got=%q", out.entries[1].Reason)
	}
	kinds := []NotificationKind{}
	for _, n := range out.notifications {
		kinds = append(kinds, n.Kind)
	}
	want := []NotificationKind{KindHarvestEvent, KindManagerHarvested, KindPayroll}
	if len(kinds) != len(want) {
		t.Fatalf("notification kinds got=%v want=%v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("notification kinds got=%v want=%v", kinds, want)
		}
	}
}

func TestPlanHarvestZeroYieldHasNoEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cat := NewCatalog([]PlantDefinition{{ID: 1, Name: "Bean", SellPrice: 2, MinRatio: 0.5, MaxRatio: 1.0}}, nil)
	acct := Account{ID: 1, ManagerOn: true}
	rules := DefaultRules()
	rules.WealthThreshold = 100

	plan := PlanHarvest(acct, 500, []CropBatch{{ID: 1, PlantID: 1, Quantity: 10, Status: StatusReady}}, cat, FixedEvent(EventExtremeDisaster), rules, now)
	if len(plan.Outcomes) != 1 {
		t.Fatalf("outcomes got=%d want=1", len(plan.Outcomes))
	}
	out := plan.Outcomes[0]
	if out.Revenue != 0 || out.Payroll != 0 || len(out.entries) != 0 {
		t.Fatalf("zero yield should not touch the ledger: %+v", out)
	}
	if len(out.notifications) != 1 || out.notifications[0].Event != EventExtremeDisaster {
		t.Fatalf("notifications got=%+v", out.notifications)
	}
}
