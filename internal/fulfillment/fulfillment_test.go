package fulfillment

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
)

func activeSnapshot(lines map[int][]cart.LineItem, contents ...cart.MenuContent) *cart.Snapshot {
	return &cart.Snapshot{Active: &cart.ActiveMenu{ID: 1, Lines: lines, Contents: contents}}
}

func intPtr(v int) *int { return &v }

func TestCurrentCountDerivesFromLines(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Kanapees", CategoryIDs: []int{70, 72}, Required: 4}
	snap := activeSnapshot(map[int][]cart.LineItem{
		70: {{CartID: "a", Quantity: 1}, {CartID: "b", Quantity: 1}},
		72: {{CartID: "c", Quantity: 1}},
		74: {{CartID: "d", Quantity: 9}},
	})

	if got := CurrentCount(req, snap); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if IsSatisfied(req, snap) {
		t.Fatalf("3 of 4 must not be satisfied")
	}
	st := Status(req, snap)
	if st.Shortfall != 1 || st.Satisfied {
		t.Fatalf("expected shortfall 1, got %+v", st)
	}
}

func TestCurrentCountPrefersBackendReportedCount(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Salate", CategoryIDs: []int{75}, Required: 2}
	snap := activeSnapshot(
		map[int][]cart.LineItem{75: {{CartID: "a", Quantity: 1}}},
		cart.MenuContent{Name: "Salate", CategoryIDs: []int{75}, Required: 2, CurrentCount: intPtr(2)},
	)

	if got := CurrentCount(req, snap); got != 2 {
		t.Fatalf("expected backend count 2, got %d", got)
	}
	if !IsSatisfied(req, snap) {
		t.Fatalf("expected satisfied")
	}
}

func TestCountClampsNegativeValues(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Dips", CategoryIDs: []int{76}, Required: 1}

	reported := activeSnapshot(nil, cart.MenuContent{Name: "Dips", CurrentCount: intPtr(-3)})
	if got, clamped := Count(req, reported); got != 0 || !clamped {
		t.Fatalf("expected clamped 0, got %d clamped=%v", got, clamped)
	}

	derived := activeSnapshot(map[int][]cart.LineItem{76: {{Quantity: -2}, {Quantity: 1}}})
	if got, clamped := Count(req, derived); got != 0 || !clamped {
		t.Fatalf("expected clamped 0, got %d clamped=%v", got, clamped)
	}
}

func TestCountWithoutActiveMenu(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Dips", CategoryIDs: []int{76}, Required: 1}
	for _, snap := range []*cart.Snapshot{nil, {}} {
		if got := CurrentCount(req, snap); got != 0 {
			t.Fatalf("expected 0, got %d", got)
		}
	}
}

func TestExtrasAlwaysSatisfied(t *testing.T) {
	t.Parallel()

	extras := catalog.CategoryRequirement{Name: "Extras", CategoryIDs: []int{74}, Required: 0}
	snapshots := []*cart.Snapshot{
		nil,
		activeSnapshot(nil),
		activeSnapshot(map[int][]cart.LineItem{74: {{Quantity: 3}}}),
		activeSnapshot(nil, cart.MenuContent{Name: "Extras", CurrentCount: intPtr(-1)}),
	}
	for i, snap := range snapshots {
		if !IsSatisfied(extras, snap) {
			t.Fatalf("snapshot %d: extras must always be satisfied", i)
		}
		if CurrentCount(extras, snap) < 0 {
			t.Fatalf("snapshot %d: negative count", i)
		}
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	pkg := catalog.PackageDefinition{
		ID:   1,
		Name: "Salat Buffet Menü (Basic)",
		Categories: []catalog.CategoryRequirement{
			{Name: "Salate", CategoryIDs: []int{75}, Required: 2},
			{Name: "Dips", CategoryIDs: []int{76}, Required: 1},
			{Name: "Extras", CategoryIDs: []int{74}, Required: 0},
		},
	}
	snap := activeSnapshot(map[int][]cart.LineItem{
		75: {{Quantity: 2}},
	})

	want := []StepStatus{
		{Name: "Salate", Current: 2, Required: 2, Satisfied: true},
		{Name: "Dips", Current: 0, Required: 1, Shortfall: 1},
		{Name: "Extras", Current: 0, Required: 0, Satisfied: true, Extras: true},
	}
	if diff := cmp.Diff(want, Evaluate(pkg, snap)); diff != "" {
		t.Fatalf("Evaluate mismatch (-want +got):\n%s", diff)
	}
}

func TestProgressObserveIsEdgeTriggered(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Salate", CategoryIDs: []int{75}, Required: 2}
	counts := []int{0, 1, 2, 2, 1, 2}
	want := []bool{false, false, true, false, false, true}

	var p Progress
	fired := 0
	for i, c := range counts {
		got := p.Observe(req, c)
		if got != want[i] {
			t.Fatalf("step %d (count %d): expected fire=%v, got %v", i, c, want[i], got)
		}
		if got {
			fired++
		}
	}
	if fired != 2 {
		t.Fatalf("expected upsell to fire twice, got %d", fired)
	}
	if p.LastKnownCount != 2 {
		t.Fatalf("expected last known count 2, got %d", p.LastKnownCount)
	}
}

func TestProgressObserveNeverFiresForExtras(t *testing.T) {
	t.Parallel()

	req := catalog.CategoryRequirement{Name: "Extras", CategoryIDs: []int{74}, Required: 0}
	var p Progress
	for _, c := range []int{0, 1, 5, 0, 3} {
		if p.Observe(req, c) {
			t.Fatalf("extras must never trigger the upsell")
		}
	}
}
