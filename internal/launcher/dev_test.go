//go:build !windows

package launcher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeServer writes a script that records its arguments, marks itself
// started and records SIGTERM before exiting.
func fakeServer(t *testing.T, dir string) string {
	t.Helper()
	script := `#!/bin/sh
trap 'echo term > "` + dir + `/server.term"; exit 0' TERM
echo "$@" > "` + dir + `/server.args"
touch "` + dir + `/server.started"
while :; do sleep 0.1; done
`
	path := filepath.Join(dir, "fake-server")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func backgroundJob(dir, name string) string {
	return `trap 'echo term > "` + dir + `/` + name + `.term"; exit 0' TERM; touch "` + dir + `/` + name + `.started"; while :; do sleep 0.1; done`
}

func devConfig(bin string) config.ServerConfig {
	return config.ServerConfig{
		VariableName:    "app",
		Host:            "0.0.0.0",
		LogLevel:        "info",
		DevBinary:       bin,
		GracefulTimeout: 5,
	}
}

func newTestDevLauncher(cfg config.ServerConfig, dir string, prestart Prestarter) *DevLauncher {
	l := NewDevLauncher(cfg, dir, prestart, nil)
	l.stdout = io.Discard
	l.stderr = io.Discard
	return l
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDevLauncher_Args(t *testing.T) {
	l := NewDevLauncher(config.ServerConfig{}, ".", nil, nil)
	assert.Equal(t,
		[]string{"src.main:app", "--reload", "--host", "0.0.0.0", "--port", "3000", "--log-level", "info"},
		l.Args("src.main:app"),
	)

	l = NewDevLauncher(config.ServerConfig{Host: "127.0.0.1", Port: "8000", LogLevel: "debug"}, ".", nil, nil)
	assert.Equal(t,
		[]string{"main:app", "--reload", "--host", "127.0.0.1", "--port", "8000", "--log-level", "debug"},
		l.Args("main:app"),
	)
}

func TestDevLauncher_InterruptStopsAllJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "src", "main.py"))
	cfg := devConfig(fakeServer(t, dir))
	cfg.BackgroundJobs = []string{backgroundJob(dir, "worker"), backgroundJob(dir, "beat")}

	prestarted := false
	l := newTestDevLauncher(cfg, dir, prestartFunc(func(context.Context) error {
		prestarted = true
		return nil
	}))
	assert.Equal(t, StateIdle, l.State())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, "server.started")) &&
			exists(filepath.Join(dir, "worker.started")) &&
			exists(filepath.Join(dir, "beat.started"))
	}, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return l.State() == StateRunning }, time.Second, 10*time.Millisecond)

	pids := l.PIDs()
	require.Len(t, pids, 3)

	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev launcher did not stop")
	}

	assert.True(t, prestarted)
	assert.Equal(t, StateStopped, l.State())
	for _, name := range []string{"server", "worker", "beat"} {
		assert.True(t, exists(filepath.Join(dir, name+".term")), "%s did not receive SIGTERM", name)
	}
	for _, pid := range pids {
		assert.True(t, errors.Is(syscall.Kill(pid, 0), syscall.ESRCH), "pid %d still alive", pid)
	}

	args, err := os.ReadFile(filepath.Join(dir, "server.args"))
	require.NoError(t, err)
	assert.Equal(t, "src.main:app --reload --host 0.0.0.0 --port 3000 --log-level info", strings.TrimSpace(string(args)))
}

func TestDevLauncher_ServerExitStopsBackgroundJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "main.py"))
	server := filepath.Join(dir, "crashing-server")
	require.NoError(t, os.WriteFile(server, []byte("#!/bin/sh\nwhile [ ! -f \""+dir+"/worker.started\" ]; do sleep 0.05; done\nexit 3\n"), 0755))

	cfg := devConfig(server)
	cfg.BackgroundJobs = []string{backgroundJob(dir, "worker")}

	err := newTestDevLauncher(cfg, dir, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, exists(filepath.Join(dir, "worker.term")))
}

func TestDevLauncher_KillsJobsIgnoringSIGTERM(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "main.py"))
	cfg := devConfig(fakeServer(t, dir))
	cfg.BackgroundJobs = []string{`trap '' TERM; touch "` + dir + `/stubborn.started"; while :; do sleep 0.1; done`}

	l := newTestDevLauncher(cfg, dir, nil)
	l.grace = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, "server.started")) && exists(filepath.Join(dir, "stubborn.started"))
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("stubborn job was not killed")
	}
}

func TestDevLauncher_MissingEntryModuleSpawnsNothing(t *testing.T) {
	dir := t.TempDir()
	prestarted := false
	l := newTestDevLauncher(devConfig(fakeServer(t, dir)), dir, prestartFunc(func(context.Context) error {
		prestarted = true
		return nil
	}))

	err := l.Run(context.Background())
	require.ErrorIs(t, err, ErrEntryModuleNotFound)
	assert.False(t, prestarted)
	assert.False(t, exists(filepath.Join(dir, "server.started")))
	assert.Empty(t, l.PIDs())
	assert.Equal(t, StateStopped, l.State())
}

func TestDevLauncher_PrestartFailureSpawnsNothing(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "main.py"))
	migrated := false
	seq := NewSequence(nil,
		ReadinessStep(waiterFunc(func(context.Context) error { return errors.New("connection refused") })),
		MigrateStep(func(context.Context) error {
			migrated = true
			return nil
		}),
	)

	err := newTestDevLauncher(devConfig(fakeServer(t, dir)), dir, seq).Run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "readiness", stepErr.Step)
	assert.False(t, migrated)
	assert.False(t, exists(filepath.Join(dir, "server.started")))
}

func TestDevLauncher_BinaryNotFound(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "main.py"))

	err := newTestDevLauncher(devConfig(filepath.Join(dir, "missing-uvicorn")), dir, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")
}
