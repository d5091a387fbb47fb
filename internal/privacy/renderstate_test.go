package privacy

import "testing"

func TestEvaluateThresholdBoundary(t *testing.T) {
	cases := []struct {
		name  string
		count int
		k     int
		want  RenderState
	}{
		{name: "one_below_threshold", count: 4, k: 5, want: RenderSuppressed},
		{name: "exactly_at_threshold", count: 5, k: 5, want: RenderVisible},
		{name: "above_threshold", count: 12, k: 5, want: RenderVisible},
		{name: "zero_participants", count: 0, k: 5, want: RenderSuppressed},
		{name: "single_participant", count: 1, k: 5, want: RenderSuppressed},
		{name: "custom_threshold_below", count: 9, k: 10, want: RenderSuppressed},
		{name: "custom_threshold_met", count: 10, k: 10, want: RenderVisible},
		{name: "zero_threshold_uses_default", count: 4, k: 0, want: RenderSuppressed},
		{name: "negative_threshold_uses_default", count: 5, k: -1, want: RenderVisible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := EvaluateCounts(tc.count, tc.k)
			if d.RenderState != tc.want {
				t.Fatalf("EvaluateCounts(%d, %d).RenderState=%s, want %s", tc.count, tc.k, d.RenderState, tc.want)
			}
		})
	}
}

func TestEvaluateNeededForReveal(t *testing.T) {
	d := EvaluateCounts(3, 5)
	if d.NeededForReveal != 2 {
		t.Fatalf("NeededForReveal=%d, want 2", d.NeededForReveal)
	}
	d = EvaluateCounts(5, 5)
	if d.NeededForReveal != 0 {
		t.Fatalf("NeededForReveal=%d for visible unit, want 0", d.NeededForReveal)
	}
}

// Once a unit is visible it must stay visible: counts only grow, and equal
// or larger counts at the same threshold must keep yielding visible.
func TestEvaluateMonotonic(t *testing.T) {
	const k = 5
	seenVisible := false
	for count := 0; count <= 50; count++ {
		d := EvaluateCounts(count, k)
		if seenVisible && !d.Visible() {
			t.Fatalf("count=%d reverted to %s after visible", count, d.RenderState)
		}
		if d.Visible() {
			seenVisible = true
		}
	}
	if !seenVisible {
		t.Fatal("never reached visible")
	}
}
