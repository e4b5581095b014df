package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDevPort is used when PORT is unset
const DefaultDevPort = "3000"

// job is a child process tracked until shutdown
type job struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}
}

func (j *job) exited() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// DevLauncher runs the auto-reloading development server plus any
// background jobs, and tears all of them down together.
type DevLauncher struct {
	cfg      config.ServerConfig
	workDir  string
	prestart Prestarter
	logger   *zap.Logger
	stdout   io.Writer
	stderr   io.Writer
	grace    time.Duration

	state stateHolder
	mu    sync.Mutex
	jobs  []*job
}

// NewDevLauncher creates a development launcher. prestart may be nil.
func NewDevLauncher(cfg config.ServerConfig, workDir string, prestart Prestarter, logger *zap.Logger) *DevLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DevLauncher{
		cfg:      cfg,
		workDir:  workDir,
		prestart: prestart,
		logger:   logger.Named("dev"),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		grace:    time.Duration(cfg.GracefulTimeout) * time.Second,
	}
}

// State reports the launcher's lifecycle state
func (l *DevLauncher) State() State {
	return l.state.load()
}

// PIDs returns the process ids of the tracked jobs, server first
func (l *DevLauncher) PIDs() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	pids := make([]int, 0, len(l.jobs))
	for _, j := range l.jobs {
		pids = append(pids, j.cmd.Process.Pid)
	}
	return pids
}

// Args returns the server arguments for app
func (l *DevLauncher) Args(app string) []string {
	port := l.cfg.Port
	if port == "" {
		port = DefaultDevPort
	}
	host := l.cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	level := l.cfg.LogLevel
	if level == "" {
		level = "info"
	}
	return []string{app, "--reload", "--host", host, "--port", port, "--log-level", level}
}

// Run resolves the entry module, runs the pre-start sequence and starts the
// server and background jobs. It blocks until ctx is cancelled or the server
// exits, then terminates every job. Once jobs are running it returns nil.
func (l *DevLauncher) Run(ctx context.Context) error {
	defer l.state.store(StateStopped)

	app, err := ResolveAppModule(l.cfg, l.workDir)
	if err != nil {
		return err
	}

	if l.prestart != nil {
		if err := l.prestart.Run(ctx); err != nil {
			return err
		}
	}

	server := exec.Command(l.cfg.DevBinary, l.Args(app)...)
	if err := l.start("server", server); err != nil {
		return err
	}
	for i, command := range l.cfg.BackgroundJobs {
		name := "job-" + strconv.Itoa(i+1)
		if err := l.start(name, exec.Command("sh", "-c", command)); err != nil {
			l.terminate()
			return err
		}
	}

	l.state.store(StateRunning)
	l.logger.Info("Development server started",
		zap.String("app", app),
		zap.Strings("args", server.Args[1:]),
		zap.Int("pid", server.Process.Pid),
		zap.Int("background_jobs", len(l.cfg.BackgroundJobs)),
	)

	l.mu.Lock()
	serverJob := l.jobs[0]
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		l.logger.Info("Shutdown requested")
	case <-serverJob.done:
		l.logger.Warn("Development server exited", zap.Stringer("status", server.ProcessState))
	}

	l.terminate()
	l.logger.Info("Development server stopped")
	return nil
}

// start launches cmd in its own process group and reaps it in the background
func (l *DevLauncher) start(name string, cmd *exec.Cmd) error {
	cmd.Dir = l.workDir
	cmd.Env = os.Environ()
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	j := &job{name: name, cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		close(j.done)
		l.logger.Debug("Job exited", zap.String("job", name), zap.Error(err))
	}()

	l.mu.Lock()
	l.jobs = append(l.jobs, j)
	l.mu.Unlock()
	return nil
}

// terminate sends SIGTERM to every job's process group and SIGKILL to the
// groups still running after the grace period. It returns once all jobs exited.
func (l *DevLauncher) terminate() {
	l.state.store(StateShuttingDown)

	l.mu.Lock()
	jobs := append([]*job(nil), l.jobs...)
	l.mu.Unlock()

	var g errgroup.Group
	for _, j := range jobs {
		// The group may outlive its leader, so signal it even after the leader exited
		if err := signalProcessGroup(j.cmd, syscall.SIGTERM); err != nil {
			l.logger.Warn("Failed to signal job", zap.String("job", j.name), zap.Error(err))
		}
		g.Go(func() error {
			<-j.done
			return nil
		})
	}

	allDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(allDone)
	}()

	timer := time.NewTimer(l.grace)
	defer timer.Stop()

	select {
	case <-allDone:
		return
	case <-timer.C:
	}

	for _, j := range jobs {
		if j.exited() {
			continue
		}
		l.logger.Warn("Job did not stop in time, killing",
			zap.String("job", j.name),
			zap.Duration("grace", l.grace),
		)
		if err := signalProcessGroup(j.cmd, syscall.SIGKILL); err != nil {
			l.logger.Warn("Failed to kill job", zap.String("job", j.name), zap.Error(err))
		}
	}
	<-allDone
}
