// Package daemon implements the attach lifecycle: it opens the capture workers on an
// interface, wires the event stream and metrics, and tears everything down on a signal.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/core/reflector"
	"firestige.xyz/woolong/internal/filter"
	"firestige.xyz/woolong/internal/hook"
	logpkg "firestige.xyz/woolong/internal/log"
	"firestige.xyz/woolong/internal/metrics"
	"firestige.xyz/woolong/internal/source/afpacket"
)

// Daemon manages the woolong process lifecycle.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string

	engine        *reflector.Engine
	prefilter     *filter.Prefilter
	sources       []*afpacket.Source
	workers       []*hook.Worker
	stream        *eventStream    // nil if events disabled
	metricsServer *metrics.Server // nil if metrics disabled

	sigChan chan os.Signal
}

// New creates a daemon for an already loaded configuration. configPath is only used to
// reload on SIGHUP and may be empty.
func New(cfg *config.GlobalConfig, configPath string) *Daemon {
	return &Daemon{
		config:     cfg,
		configPath: configPath,
	}
}

// Start attaches to the interface. Attach-time failures (missing interface, interface down,
// insufficient privilege) are returned and leave nothing behind.
func (d *Daemon) Start(ctx context.Context) (err error) {
	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := logpkg.GetLogger()
	logger.WithFields(map[string]interface{}{
		"interface": d.config.Capture.Interface,
		"workers":   d.config.Capture.Workers,
		"port":      d.config.Reflector.TriggerPort,
	}).Info("starting woolong")

	defer func() {
		if err != nil {
			d.release()
		}
	}()

	// 2. Build the engine
	opts, err := d.config.Reflector.Options()
	if err != nil {
		return err
	}
	if d.engine, err = reflector.New(opts); err != nil {
		return err
	}

	// 3. Resolve the interface
	ifindex, err := checkLink(d.config.Capture.Interface)
	if err != nil {
		return err
	}
	logger.WithField("ifindex", ifindex).Debug("interface resolved")

	// 4. Kernel prefilter
	if d.config.Capture.Filter == filter.KindEBPF {
		if err := rlimit.RemoveMemlock(); err != nil {
			logger.WithError(err).Debug("remove memlock rlimit failed")
		}
	}
	if d.prefilter, err = filter.New(d.config.Capture.Filter, opts.TriggerPort); err != nil {
		return err
	}

	// 5. Capture sockets
	if err := d.openSources(); err != nil {
		return err
	}

	// 6. Event stream
	if d.config.Events.Enabled {
		if d.stream, err = newEventStream(d.config.Events, len(d.sources)); err != nil {
			return err
		}
	}

	// 7. Workers
	for i, src := range d.sources {
		w, err := hook.New(hook.Config{
			ID:        i,
			Source:    src,
			TX:        src,
			Engine:    d.engine,
			Events:    d.stream.publisher(),
			Verdicts:  d.config.Events.Verdicts,
			RecordLen: d.config.Events.RecordLen,
		})
		if err != nil {
			return err
		}
		d.workers = append(d.workers, w)
	}

	// 8. Metrics server
	if err := d.startMetrics(ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 9. Write PID file
	if err := writePIDFile(d.config.Control.PIDFile); err != nil {
		return err
	}

	logger.WithField("filter", d.prefilter.Kind()).Info("woolong attached")
	return nil
}

func (d *Daemon) openSources() error {
	capture := d.config.Capture

	fanout := uint16(capture.FanoutID)
	if fanout == 0 && capture.Workers > 1 {
		fanout = uint16(os.Getpid() & 0xFFFF)
		if fanout == 0 {
			fanout = 1
		}
	}

	for i := 0; i < capture.Workers; i++ {
		src, err := afpacket.NewSource(afpacket.Config{
			Interface:    capture.Interface,
			SnapLen:      capture.SnapLen,
			BufferSizeMB: capture.BufferSizeMB,
			TimeoutMS:    capture.TimeoutMS,
			FanoutID:     fanout,
		})
		if err != nil {
			return err
		}
		d.sources = append(d.sources, src)

		if err := d.prefilter.Attach(src); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the daemon and blocks until SIGINT/SIGTERM, ctx cancellation or a worker
// failure. SIGHUP reloads the hot-reloadable parts of the configuration.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(d.sigChan)

	streamCtx, stopStream := context.WithCancel(context.Background())
	streamDone := make(chan error, 1)
	go func() { streamDone <- d.stream.run(streamCtx) }()

	workCtx, stopWork := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(workCtx)
	for _, w := range d.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	workDone := make(chan error, 1)
	go func() { workDone <- g.Wait() }()

	logger := logpkg.GetLogger()
	logger.Info("woolong running, waiting for signals")

	var runErr error
	workersDone := false
loop:
	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				break loop
			case syscall.SIGHUP:
				logger.Info("received reload signal")
				if err := d.Reload(); err != nil {
					logger.WithError(err).Error("failed to reload config")
				}
			}

		case runErr = <-workDone:
			workersDone = true
			if runErr != nil {
				logger.WithError(runErr).Error("worker failed")
			}
			break loop

		case <-ctx.Done():
			logger.Info("context cancelled")
			break loop
		}
	}

	// workers first, so the stream drains everything they published
	stopWork()
	if !workersDone {
		runErr = <-workDone
	}
	d.stream.close()
	stopStream()
	<-streamDone

	d.Stop()
	return runErr
}

// Stop releases sockets, the prefilter and the metrics server. Workers must have returned.
func (d *Daemon) Stop() {
	logger := logpkg.GetLogger()
	logger.Info("initiating graceful shutdown")

	for i, w := range d.workers {
		st := w.Stats()
		logger.WithFields(map[string]interface{}{
			"worker":      i,
			"received":    st.Received,
			"transmitted": st.Transmitted,
			"aborted":     st.Aborted,
			"tx_errors":   st.TxErrors,
		}).Info("worker summary")
	}
	if d.stream != nil {
		st := d.stream.ring.Stats()
		logger.WithFields(map[string]interface{}{
			"published": st.Published,
			"dropped":   st.Dropped,
			"processed": st.Processed,
		}).Info("event summary")
	}

	d.release()

	if err := removePIDFile(d.config.Control.PIDFile); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}
	logger.Info("woolong stopped")
}

func (d *Daemon) release() {
	logger := logpkg.GetLogger()

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.metricsServer.Stop(ctx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
		cancel()
		d.metricsServer = nil
	}
	for _, src := range d.sources {
		src.Close()
	}
	d.sources = nil
	if d.prefilter != nil {
		d.prefilter.Close()
		d.prefilter = nil
	}
	if err := d.stream.closeSinks(); err != nil {
		logger.WithError(err).Error("error closing event sinks")
	}
}

// Reload reloads the configuration file.
// Hot-reloadable: log level/format.
// Cold (requires restart): everything else.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		return errors.New("no configuration file to reload")
	}
	logger := logpkg.GetLogger()
	logger.WithField("path", d.configPath).Info("reloading configuration")

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	var requiresRestart []string
	if newConfig.Capture != d.config.Capture {
		requiresRestart = append(requiresRestart, "capture")
	}
	if newConfig.Reflector != d.config.Reflector {
		requiresRestart = append(requiresRestart, "reflector")
	}
	if newConfig.Events != d.config.Events {
		requiresRestart = append(requiresRestart, "events")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}

	d.config.Log = newConfig.Log
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}

	logpkg.GetLogger().WithField("requires_restart", requiresRestart).Info("configuration reloaded")
	return nil
}

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}
	logpkg.GetLogger().WithFields(map[string]interface{}{
		"level":  d.config.Log.Level,
		"format": d.config.Log.Format,
	}).Debug("logging initialized")
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics(ctx context.Context) error {
	if !d.config.Metrics.Enabled {
		logpkg.GetLogger().Debug("metrics server disabled")
		return nil
	}

	srv := metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	d.metricsServer = srv
	return nil
}

// writePIDFile writes the current process ID to path.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", path, err)
	}

	logpkg.GetLogger().WithField("path", path).WithField("pid", pid).Debug("PID file written")
	return nil
}

// removePIDFile removes the PID file.
func removePIDFile(path string) error {
	if path == "" {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", path, err)
	}
	return nil
}
