package launcher

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DefaultProdPort is used when PORT is unset
const DefaultProdPort = "80"

// ProdLauncher hands the process over to the production server. On success
// Run never returns: the server replaces bloomctl and owns signal handling.
type ProdLauncher struct {
	cfg      config.ServerConfig
	workDir  string
	prestart Prestarter
	logger   *zap.Logger

	numCPU   func() int
	lookPath func(file string) (string, error)
	chdir    func(dir string) error
	exec     func(argv0 string, argv []string, env []string) error

	state stateHolder
}

// NewProdLauncher creates a production launcher. prestart may be nil.
func NewProdLauncher(cfg config.ServerConfig, workDir string, prestart Prestarter, logger *zap.Logger) *ProdLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProdLauncher{
		cfg:      cfg,
		workDir:  workDir,
		prestart: prestart,
		logger:   logger.Named("prod"),
		numCPU:   runtime.NumCPU,
		lookPath: exec.LookPath,
		chdir:    os.Chdir,
		exec:     execProcess,
	}
}

// State reports the launcher's lifecycle state
func (l *ProdLauncher) State() State {
	return l.state.load()
}

// Args returns the server arguments for app with the given worker count
func (l *ProdLauncher) Args(app string, workers int) []string {
	port := l.cfg.Port
	if port == "" {
		port = DefaultProdPort
	}
	return []string{
		app,
		"--worker-class", l.cfg.WorkerClass,
		"--workers", strconv.Itoa(workers),
		"--worker-connections", strconv.Itoa(l.cfg.WorkerConnections),
		"--bind", net.JoinHostPort(l.cfg.Host, port),
		"--timeout", strconv.Itoa(l.cfg.Timeout),
		"--keep-alive", strconv.Itoa(l.cfg.KeepAlive),
		"--graceful-timeout", strconv.Itoa(l.cfg.GracefulTimeout),
		"--max-requests", strconv.Itoa(l.cfg.MaxRequests),
		"--max-requests-jitter", strconv.Itoa(l.cfg.MaxRequestsJitter),
		"--log-level", l.cfg.LogLevel,
	}
}

// Run resolves the entry module, runs the pre-start sequence and execs the
// server. It only returns when something before or during exec failed.
func (l *ProdLauncher) Run(ctx context.Context) error {
	app, err := ResolveAppModule(l.cfg, l.workDir)
	if err != nil {
		l.state.store(StateStopped)
		return err
	}

	if l.prestart != nil {
		if err := l.prestart.Run(ctx); err != nil {
			l.state.store(StateStopped)
			return err
		}
	}

	workers := WorkerCount(l.numCPU(), l.cfg.Workers)
	bin, err := l.lookPath(l.cfg.ProdBinary)
	if err != nil {
		l.state.store(StateStopped)
		return fmt.Errorf("failed to find %s: %w", l.cfg.ProdBinary, err)
	}
	if l.workDir != "" && l.workDir != "." {
		if err := l.chdir(l.workDir); err != nil {
			l.state.store(StateStopped)
			return fmt.Errorf("failed to enter work dir: %w", err)
		}
	}

	argv := append([]string{l.cfg.ProdBinary}, l.Args(app, workers)...)
	l.logger.Info("Starting production server",
		zap.String("binary", bin),
		zap.String("app", app),
		zap.Int("workers", workers),
		zap.Strings("args", argv[1:]),
	)
	_ = l.logger.Sync()

	l.state.store(StateRunning)
	if err := l.exec(bin, argv, os.Environ()); err != nil {
		l.state.store(StateStopped)
		return fmt.Errorf("failed to exec %s: %w", bin, err)
	}
	return nil
}
