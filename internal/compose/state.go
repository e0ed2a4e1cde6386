package compose

import "fmt"

// State is a step of the export lifecycle:
//
//	idle -> building-graph -> exporting -> completed | failed | cancelled
//
// A failure while building the graph moves straight to failed or cancelled.
type State int32

const (
	StateIdle State = iota
	StateBuildingGraph
	StateExporting
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildingGraph:
		return "building-graph"
	case StateExporting:
		return "exporting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateCancelled; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown export state %q", string(b))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// canTransition lists the legal edges of the lifecycle.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateBuildingGraph
	case StateBuildingGraph:
		return to == StateExporting || to == StateFailed || to == StateCancelled
	case StateExporting:
		return to.Terminal()
	default:
		return false
	}
}
