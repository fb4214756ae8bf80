package modrun

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/modrun/pkg/descriptor"
	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/log"
	"github.com/bft-labs/modrun/pkg/module"
)

// ContainerFactory creates containers for module descriptions. Descriptions
// that cannot be turned into a container are skipped and their errors joined.
type ContainerFactory interface {
	Containers(descs []Description) ([]Container, error)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Targets are run in order by RunTargets.
	Targets []string

	// ShutdownState is run by Shutdown. Empty skips teardown.
	ShutdownState string

	// RunTimeout bounds each RunState call. Zero means no timeout.
	RunTimeout time.Duration

	// DebounceDelay coalesces descriptor changes in Watch.
	DebounceDelay time.Duration
}

// Runner keeps a Manager in sync with a descriptor directory and drives the
// registered modules through the configured target states.
type Runner struct {
	manager *Manager
	dir     *descriptor.Dir
	factory ContainerFactory
	cfg     RunnerConfig
	logger  log.Logger

	// regMu serializes registration between Sync and watcher reloads.
	regMu sync.Mutex

	mu   sync.Mutex
	last string
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(m *Manager, dir *descriptor.Dir, factory ContainerFactory, cfg RunnerConfig, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = descriptor.DefaultDebounceDelay
	}
	return &Runner{
		manager: m,
		dir:     dir,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}
}

// Manager returns the underlying manager.
func (r *Runner) Manager() *Manager { return r.manager }

// Sync loads the descriptor directory and registers every module that is not
// registered yet, then rebuilds the dependency graph. It returns the number
// of modules added. Descriptor, container and registration errors are joined
// into the returned error; modules that loaded cleanly are registered anyway.
func (r *Runner) Sync(ctx context.Context) (int, error) {
	descs, err := r.dir.Descriptions()
	added, syncErr := r.register(ctx, descs)
	return added, errors.Join(err, syncErr)
}

func (r *Runner) register(ctx context.Context, descs []Description) (int, error) {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	var fresh []Description
	for _, d := range descs {
		if _, ok := r.manager.Get(d.Name); ok {
			continue
		}
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	containers, createErr := r.factory.Containers(fresh)
	before := len(r.manager.Modules())
	addErr := r.manager.AddModules(ctx, containers, true)
	added := len(r.manager.Modules()) - before

	r.logger.Info("modules registered", log.Int("added", added), log.Int("total", before+added))
	return added, errors.Join(createErr, addErr)
}

// Run drives every registered module to target and logs the outcome.
func (r *Runner) Run(ctx context.Context, target string) (Report, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	r.mu.Lock()
	r.last = target
	r.mu.Unlock()

	report, err := r.manager.RunState(ctx, target)
	r.logReport(report)
	return report, err
}

// RunTargets runs the configured targets in order. It stops at the first
// target whose run returns an error; module failures are only logged.
func (r *Runner) RunTargets(ctx context.Context) error {
	for _, target := range r.cfg.Targets {
		if _, err := r.Run(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// Watch follows the descriptor directory until ctx is done. New modules are
// registered and driven to the most recently run target.
func (r *Runner) Watch(ctx context.Context) error {
	w := descriptor.NewWatcher(r.dir, r.onChange,
		descriptor.WithDebounceDelay(r.cfg.DebounceDelay),
		descriptor.WithWatcherLogger(r.logger),
	)
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (r *Runner) onChange(ctx context.Context, descs []Description, _ error) {
	added, err := r.register(ctx, descs)
	if err != nil {
		r.logger.Warn("descriptor sync had errors", log.Err(err))
	}
	if added == 0 {
		return
	}

	r.mu.Lock()
	target := r.last
	r.mu.Unlock()
	if target == "" {
		return
	}
	if _, err := r.Run(ctx, target); err != nil {
		r.logger.Error("rerun after descriptor change failed", log.State(target), log.Err(err))
	}
}

// Shutdown runs the configured shutdown state. It is a no-op when no
// shutdown state is configured.
func (r *Runner) Shutdown(ctx context.Context) (Report, error) {
	if r.cfg.ShutdownState == "" {
		return Report{}, nil
	}
	return r.Run(ctx, r.cfg.ShutdownState)
}

func (r *Runner) logReport(report Report) {
	for _, o := range report.Failed() {
		fields := []log.Field{
			log.RunID(report.RunID),
			log.Module(o.Module),
			log.State(o.State),
			log.Err(o.Err),
		}
		if errors.Is(o.Err, module.ErrModuleFailed) {
			r.logger.Debug("module remains failed", fields...)
			continue
		}
		if errors.Is(o.Err, lifecycle.ErrNoPath) {
			r.logger.Warn("module cannot reach target", append(fields, log.String("target", report.Target))...)
			continue
		}
		r.logger.Error("module failed during run", fields...)
	}
}
