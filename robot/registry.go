package robot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/config"
)

// A RoutineBuilder constructs a fresh action for one run of a routine. Tunables are read from p at
// build time; a configuration error means the routine is not scheduled.
type RoutineBuilder func(ctx context.Context, r *Robot, p config.Provider) (action.Action, error)

var (
	routineRegistryMu sync.RWMutex
	routineRegistry   = map[string]RoutineBuilder{}
)

// RegisterRoutine makes a routine available to every robot built afterwards. Registering a name
// twice panics.
func RegisterRoutine(name string, builder RoutineBuilder) {
	routineRegistryMu.Lock()
	defer routineRegistryMu.Unlock()

	if _, old := routineRegistry[name]; old {
		panic(fmt.Errorf("routine [%s] already registered", name))
	}
	if builder == nil {
		panic(fmt.Errorf("routine [%s] has no builder", name))
	}
	routineRegistry[name] = builder
}

// RegisteredRoutines returns the names of the globally registered routines, sorted.
func RegisteredRoutines() []string {
	routineRegistryMu.RLock()
	defer routineRegistryMu.RUnlock()
	names := lo.Keys(routineRegistry)
	sort.Strings(names)
	return names
}

func registeredRoutines() map[string]RoutineBuilder {
	routineRegistryMu.RLock()
	defer routineRegistryMu.RUnlock()
	return lo.Assign(routineRegistry)
}
