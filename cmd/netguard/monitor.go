package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netguard/netguard/pkg/api"
	"github.com/netguard/netguard/pkg/config"
	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/journal"
	"github.com/netguard/netguard/pkg/log"
	"github.com/netguard/netguard/pkg/notify"
	"github.com/netguard/netguard/pkg/recovery"
	"github.com/netguard/netguard/pkg/scheduler"
)

// shutdownGrace bounds how long in-flight probes and recoveries may run
// after a stop signal before they are abandoned
const shutdownGrace = 5 * time.Second

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring loop",
	Long: `Start monitoring all configured targets. Each target is probed on
its own interval; targets that stay down past the failure threshold get
their recovery sequence executed. Runs until interrupted.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	if err := initLogging(cfg.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.WithComponent("main")

	// Journal is optional; without a data dir events are log-only
	var jnl *journal.Journal
	if cfg.DataDir != "" {
		jnl, err = journal.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer jnl.Close()

		stopRetention := jnl.StartRetention(time.Hour, cfg.JournalRetention.Std())
		defer stopRetention()
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sinks := []notify.Sink{notify.NewLogSink()}
	if cfg.NotifyCommand != "" {
		sinks = append(sinks, notify.NewCommandSink(cfg.NotifyCommand))
	}
	if jnl != nil {
		sinks = append(sinks, notify.NewJournalSink(jnl))
	}
	notifier := notify.NewNotifier(broker, sinks...)
	notifier.Start()
	defer notifier.Stop()

	orch := recovery.NewOrchestrator(broker)

	var recorder scheduler.StatusRecorder
	if jnl != nil {
		recorder = jnl
	}
	sched := scheduler.New(cfg, broker, orch, recorder)
	sched.Start()

	var eventSrc api.EventSource
	if jnl != nil {
		eventSrc = jnl
	}
	apiServer := api.NewServer(sched, eventSrc)
	apiErrCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.ListenAddr); err != nil {
			apiErrCh <- err
		}
	}()

	logger.Info().
		Int("targets", len(cfg.Targets)).
		Str("listen", cfg.ListenAddr).
		Msg("netguard started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-apiErrCh:
		logger.Error().Err(err).Msg("control api failed")
	}

	if !sched.Stop(shutdownGrace) {
		logger.Warn().Msg("shutdown timed out, some work was abandoned")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api shutdown failed")
	}

	logger.Info().Msg("netguard stopped")
	return nil
}

func initLogging(logFile string) error {
	level := log.InfoLevel
	if flagDebug {
		level = log.DebugLevel
	}
	return log.Init(log.Config{
		Level:      level,
		JSONOutput: flagJSONLog,
		File:       logFile,
	})
}
