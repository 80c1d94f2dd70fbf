// Package subsystem implements the tree of physical subsystems ticked by the robot loop. Each
// subsystem owns its actuators and holds at most one active action.
package subsystem

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tickbot-robotics/tickbot/action"
	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/utils"
)

// PathSeparator joins subsystem names in Path.
const PathSeparator = "/"

// RefreshFunc snapshots a subsystem's sensor state at the start of a tick.
type RefreshFunc func(ctx context.Context) error

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithRefresh sets the hook run in the refresh phase of every tick.
func WithRefresh(fn RefreshFunc) Option {
	return func(s *Subsystem) {
		s.refresh = fn
	}
}

// WithDefaultAction sets the factory armed whenever the action slot is empty.
func WithDefaultAction(factory func() action.Action) Option {
	return func(s *Subsystem) {
		s.defaultFactory = factory
	}
}

// A Subsystem is a node in the robot's subsystem tree.
//
// The tree is only touched from the goroutine driving the ticks.
type Subsystem struct {
	name     string
	logger   logging.Logger
	parent   *Subsystem
	children []*Subsystem

	refresh        RefreshFunc
	defaultFactory func() action.Action

	current          action.Action
	currentIsDefault bool
}

var _ action.Assignee = &Subsystem{}

// New returns a root subsystem. Its logger is a sublogger of logger named after it.
func New(name string, logger logging.Logger, opts ...Option) *Subsystem {
	s := &Subsystem{name: name, logger: logger.Sublogger(name)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the subsystem's name.
func (s *Subsystem) Name() string {
	return s.name
}

// Logger returns the subsystem's logger.
func (s *Subsystem) Logger() logging.Logger {
	return s.logger
}

// Parent returns the parent, or nil for the root.
func (s *Subsystem) Parent() *Subsystem {
	return s.parent
}

// Children returns the children in insertion order.
func (s *Subsystem) Children() []*Subsystem {
	return append([]*Subsystem(nil), s.children...)
}

// Path returns the names from the root down to s.
func (s *Subsystem) Path() string {
	if s.parent == nil {
		return s.name
	}
	return s.parent.Path() + PathSeparator + s.name
}

// Root returns the top of the tree.
func (s *Subsystem) Root() *Subsystem {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// AddChild attaches child under s. A child can have only one parent, names are unique among
// siblings and the tree cannot contain cycles.
func (s *Subsystem) AddChild(child *Subsystem) error {
	if child == nil {
		return errors.New("cannot add nil subsystem")
	}
	if child.parent != nil {
		return errors.Errorf("subsystem %q already has parent %q", child.name, child.parent.Path())
	}
	if child == s.Root() {
		return errors.Errorf("adding %q under %q would create a cycle", child.name, s.Path())
	}
	if _, dup := lo.Find(s.children, func(c *Subsystem) bool { return c.name == child.name }); dup {
		return errors.Errorf("subsystem %q already has a child named %q", s.Path(), child.name)
	}
	child.parent = s
	s.children = append(s.children, child)
	return nil
}

// Walk visits s and its descendants in pre-order: a parent before its children, children in
// insertion order.
func (s *Subsystem) Walk(fn func(*Subsystem)) {
	fn(s)
	for _, c := range s.children {
		c.Walk(fn)
	}
}

// Find returns the descendant at the given path relative to s, e.g. "superstructure/arm".
func (s *Subsystem) Find(path string) (*Subsystem, bool) {
	node := s
	for _, part := range lo.Compact(strings.Split(path, PathSeparator)) {
		next, ok := lo.Find(node.children, func(c *Subsystem) bool { return c.name == part })
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, true
}

// CurrentAction returns the action in the slot, or nil.
func (s *Subsystem) CurrentAction() action.Action {
	return s.current
}

// Busy reports whether a non-default action is running.
func (s *Subsystem) Busy() bool {
	return s.current != nil && !s.current.IsDone() && !s.currentIsDefault
}

// SetAction makes a the active action. If a running action holds the slot and interruptCurrent is
// false the request is rejected and false is returned; default actions are always interruptible.
// Otherwise the old action is canceled before a is started.
func (s *Subsystem) SetAction(ctx context.Context, a action.Action, interruptCurrent bool) bool {
	if a == nil {
		s.CancelAction(ctx)
		return true
	}
	if a == s.current {
		return true
	}
	if s.Busy() && !interruptCurrent {
		s.logger.Infow("action rejected", "action", a.Name(), "current", s.current.Name())
		return false
	}
	s.install(ctx, a, false)
	return true
}

// CancelAction cancels and clears the current action. The default action, if any, is armed on
// the next tick.
func (s *Subsystem) CancelAction(ctx context.Context) {
	if s.current == nil {
		return
	}
	if !s.current.IsDone() {
		s.current.Cancel(ctx)
	}
	s.current = nil
	s.currentIsDefault = false
}

// SetDefaultAction replaces the default action factory. A nil factory clears it.
func (s *Subsystem) SetDefaultAction(factory func() action.Action) {
	s.defaultFactory = factory
}

func (s *Subsystem) install(ctx context.Context, a action.Action, isDefault bool) {
	if s.current != nil && !s.current.IsDone() {
		s.logger.Debugw("action replaced", "old", s.current.Name(), "new", a.Name())
		s.current.Cancel(ctx)
	}
	s.current = a
	s.currentIsDefault = isDefault
	a.Start(ctx)
	if a.IsDone() {
		s.current = nil
		s.currentIsDefault = false
	}
}

// Tick advances the whole subtree rooted at s by one period. All subsystems refresh their sensor
// snapshots first; only then does any action run.
func (s *Subsystem) Tick(ctx context.Context) {
	s.Walk(func(n *Subsystem) { n.refreshState(ctx) })
	s.Walk(func(n *Subsystem) { n.act(ctx) })
}

func (s *Subsystem) refreshState(ctx context.Context) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh(ctx); err != nil {
		s.logger.Warnw("refresh failed", "error", err)
	}
}

func (s *Subsystem) act(ctx context.Context) {
	if s.current == nil && s.defaultFactory != nil {
		if d := s.defaultFactory(); d != nil {
			s.install(ctx, d, true)
		}
	}
	if s.current == nil {
		return
	}
	if !s.current.IsDone() {
		s.current.Run(ctx)
	}
	if s.current.IsDone() {
		s.current = nil
		s.currentIsDefault = false
	}
}

// Describe renders the subtree with each subsystem's current action.
func (s *Subsystem) Describe(indent int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s", action.Indent(indent), s.name)
	if s.current != nil {
		sb.WriteString(":\n")
		sb.WriteString(s.current.Describe(indent + 2))
	}
	for _, c := range s.children {
		sb.WriteString("\n")
		sb.WriteString(c.Describe(indent + 1))
	}
	return sb.String()
}

// LogHardwareError logs a rejected device request and reports whether there was one. The tick
// carries on either way.
func (s *Subsystem) LogHardwareError(device string, err error) bool {
	return utils.LogHardwareError(s.logger, device, err)
}
