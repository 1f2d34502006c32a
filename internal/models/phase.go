package models

import "fmt"

type NavigationPhase string

const (
	PhaseToClient      NavigationPhase = "to_client"
	PhaseAtClient      NavigationPhase = "at_client"
	PhaseToDestination NavigationPhase = "to_destination"
	PhaseFinished      NavigationPhase = "finished"
)

// Legacy phase names still emitted by older app builds.
const (
	legacyGoingToVehicle     NavigationPhase = "going_to_vehicle"
	legacyGoingToDestination NavigationPhase = "going_to_destination"
)

var phaseIndexes = map[NavigationPhase]int{
	PhaseToClient:      0,
	PhaseAtClient:      1,
	PhaseToDestination: 2,
	PhaseFinished:      3,
}

// NormalizePhase maps legacy aliases onto the canonical phase names.
// Unknown values are returned unchanged so the caller can reject them.
func NormalizePhase(phase NavigationPhase) NavigationPhase {
	switch phase {
	case legacyGoingToVehicle:
		return PhaseToClient
	case legacyGoingToDestination:
		return PhaseToDestination
	default:
		return phase
	}
}

// Index returns the ordering index of the phase, or -1 for unknown values.
func (p NavigationPhase) Index() int {
	if idx, ok := phaseIndexes[NormalizePhase(p)]; ok {
		return idx
	}
	return -1
}

func (p NavigationPhase) IsValid() bool {
	return p.Index() >= 0
}

// Before reports whether p is strictly earlier in the trip lifecycle than other.
func (p NavigationPhase) Before(other NavigationPhase) bool {
	return p.Index() < other.Index()
}

// NextPhase returns the phase entered when the provider confirms arrival or
// finishes the service. Two-leg services (tow style, hasDestination=true) go
// through to_destination; single-leg services finalize straight from to_client.
func NextPhase(current NavigationPhase, hasDestination bool) (NavigationPhase, error) {
	switch NormalizePhase(current) {
	case PhaseToClient:
		if hasDestination {
			return PhaseToDestination, nil
		}
		return PhaseAtClient, nil
	case PhaseAtClient:
		return PhaseFinished, nil
	case PhaseToDestination:
		return PhaseFinished, nil
	case PhaseFinished:
		return "", fmt.Errorf("trip already finished")
	default:
		return "", fmt.Errorf("unknown navigation phase %q", current)
	}
}

// CanTransition reports whether moving from one phase to another respects the
// monotonic ordering rule. Equal phases are allowed (idempotent updates).
func CanTransition(from, to NavigationPhase) bool {
	fromIdx := from.Index()
	toIdx := to.Index()
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	return toIdx >= fromIdx
}
