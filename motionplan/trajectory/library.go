package trajectory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/tickbot-robotics/tickbot/logging"
)

// FileExtension is the extension of pre-baked trajectory files.
const FileExtension = ".json"

// maxParallelLoads bounds concurrent file reads during LoadLibrary.
const maxParallelLoads = 8

// A Library serves pre-baked trajectories by name.
type Library struct {
	logger logging.Logger

	mu           sync.RWMutex
	trajectories map[string]*Trajectory
}

// NewLibrary returns an empty library.
func NewLibrary(logger logging.Logger) *Library {
	return &Library{logger: logger, trajectories: map[string]*Trajectory{}}
}

// LoadLibrary reads every trajectory file in dir. Files are decoded concurrently; any invalid file
// fails the whole load.
func LoadLibrary(ctx context.Context, dir string, logger logging.Logger) (*Library, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+FileExtension))
	if err != nil {
		return nil, err
	}
	lib := NewLibrary(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			//nolint:gosec
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "reading trajectory file %s", path)
			}
			name := strings.TrimSuffix(filepath.Base(path), FileExtension)
			traj, err := Decode(data, name)
			if err != nil {
				return errors.Wrapf(err, "loading %s", path)
			}
			return lib.Add(traj)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Infow("trajectory library loaded", "dir", dir, "count", len(paths))
	return lib, nil
}

// Add stores t under its name. Names must be unique.
func (l *Library) Add(t *Trajectory) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.trajectories[t.Name()]; ok {
		return errors.Errorf("duplicate trajectory %q", t.Name())
	}
	l.trajectories[t.Name()] = t
	return nil
}

// Get returns the trajectory called name.
func (l *Library) Get(name string) (*Trajectory, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.trajectories[name]
	if !ok {
		return nil, errors.Errorf("no trajectory named %q", name)
	}
	return t, nil
}

// Names returns the stored names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := lo.Keys(l.trajectories)
	sort.Strings(names)
	return names
}
