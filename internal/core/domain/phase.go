package domain

// Phase tracks where the identity lifecycle currently stands. It moves
// strictly forward through bootstrap and then oscillates between the two
// ready states as sessions come and go.
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseLoadingSession  Phase = "loading_session"
	PhaseFetchingProfile Phase = "fetching_profile"
	PhaseReadySignedIn   Phase = "ready_signed_in"
	PhaseReadySignedOut  Phase = "ready_signed_out"
)

// phaseTransitions defines the allowed lifecycle moves. Token refreshes are
// self-loops and need no entry.
var phaseTransitions = map[Phase][]Phase{
	PhaseUninitialized:   {PhaseLoadingSession},
	PhaseLoadingSession:  {PhaseFetchingProfile, PhaseReadySignedOut},
	PhaseFetchingProfile: {PhaseReadySignedIn, PhaseReadySignedOut},
	PhaseReadySignedIn:   {PhaseFetchingProfile, PhaseReadySignedOut},
	PhaseReadySignedOut:  {PhaseFetchingProfile, PhaseReadySignedOut},
}

// CanTransitionTo reports whether the lifecycle may move to the given phase.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
