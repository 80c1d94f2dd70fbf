package trajectory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/spatialmath"
)

func writeTrajectory(t *testing.T, dir, file string, traj *Trajectory) {
	t.Helper()
	data, err := json.Marshal(traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, file), data, 0o600), test.ShouldBeNil)
}

func TestLoadLibrary(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	for _, name := range []string{"leave_start", "to_station", "score_high"} {
		traj, err := Generate(name, spatialmath.NewZeroPose(), []Waypoint{{X: 1, Y: 1}}, testConstraints, DefaultSamplePeriod)
		test.That(t, err, test.ShouldBeNil)
		writeTrajectory(t, dir, name+".json", traj)
	}
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600), test.ShouldBeNil)

	lib, err := LoadLibrary(context.Background(), dir, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lib.Names(), test.ShouldResemble, []string{"leave_start", "score_high", "to_station"})

	traj, err := lib.Get("to_station")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Final().Pose.X(), test.ShouldAlmostEqual, 1.)

	_, err = lib.Get("nope")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no trajectory named "nope"`)
}

func TestLoadLibraryRejectsInvalidFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	traj, err := Generate("ok", spatialmath.NewZeroPose(), []Waypoint{{X: 1}}, testConstraints, DefaultSamplePeriod)
	test.That(t, err, test.ShouldBeNil)
	writeTrajectory(t, dir, "ok.json", traj)
	test.That(t, os.WriteFile(filepath.Join(dir, "short.json"), []byte(`{"samples":[{"t":0}]}`), 0o600), test.ShouldBeNil)

	_, err = LoadLibrary(context.Background(), dir, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "short.json")
}

func TestLibraryRejectsDuplicates(t *testing.T) {
	lib := NewLibrary(logging.NewTestLogger(t))
	test.That(t, lib.Add(line(t)), test.ShouldBeNil)
	err := lib.Add(line(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate")
}
