package privacy

// RenderState is the visibility decision for one aggregation unit.
type RenderState string

const (
	RenderVisible    RenderState = "visible"
	RenderSuppressed RenderState = "suppressed"

	// DefaultKThreshold is the org default for minimum distinct
	// contributors before content may be shown.
	DefaultKThreshold = 5
)

// Unit is anything whose visibility is gated on distinct contributors: a
// feedback thread, a comment set, a theme.
type Unit interface {
	DistinctParticipants() int
	MinParticipants() int
}

// Decision is the full evaluation result. NeededForReveal is how many more
// distinct contributors a suppressed unit needs; zero when visible.
type Decision struct {
	RenderState      RenderState `json:"render_state"`
	ParticipantCount int         `json:"participant_count"`
	KThreshold       int         `json:"k_threshold"`
	NeededForReveal  int         `json:"needed_for_reveal"`
}

func (d Decision) Visible() bool { return d.RenderState == RenderVisible }

// Evaluate recomputes the render state from current counts. It must run
// fresh on every read path (UI, export, digest); never cache the result
// across writes. Participant counts only grow, so the derived state can only
// move suppressed -> visible, never back.
func Evaluate(u Unit) Decision {
	count := u.DistinctParticipants()
	k := u.MinParticipants()
	if k <= 0 {
		k = DefaultKThreshold
	}
	d := Decision{
		ParticipantCount: count,
		KThreshold:       k,
		RenderState:      RenderSuppressed,
	}
	if count >= k {
		d.RenderState = RenderVisible
		return d
	}
	d.NeededForReveal = k - count
	return d
}

// EvaluateCounts is Evaluate for callers that hold bare numbers.
func EvaluateCounts(participantCount, kThreshold int) Decision {
	return Evaluate(countUnit{n: participantCount, k: kThreshold})
}

type countUnit struct{ n, k int }

func (c countUnit) DistinctParticipants() int { return c.n }
func (c countUnit) MinParticipants() int      { return c.k }
