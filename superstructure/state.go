package superstructure

import (
	"fmt"

	"github.com/tickbot-robotics/tickbot/logging"
)

// stateEnum is the private state type of one compound action.
type stateEnum interface {
	~int
	fmt.Stringer
}

// machine holds a compound action's current state and logs every transition.
type machine[S stateEnum] struct {
	logger logging.Logger
	state  S
}

func newMachine[S stateEnum](logger logging.Logger, initial S) machine[S] {
	return machine[S]{logger: logger, state: initial}
}

func (m *machine[S]) transition(to S) {
	m.logger.Infow("state transition", "from", m.state.String(), "to", to.String())
	m.state = to
}
