package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"appwatch/internal/config"
	"appwatch/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchStop        bool
	watchStatus      bool
	watchInterval    time.Duration
	watchPIDFile     string
	watchLogFileFlag string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Check for updates periodically in the background",
		Long: `Keep checking every tracked app on an interval (default 6h) and send a
desktop notification when updates appear.

Watch modes:
  • Foreground (default): run in the current terminal, Ctrl+C to stop
  • Daemon: detach into the background
  • Stop: stop a running daemon

The watcher also reacts to registry changes: adding an app from another
terminal triggers a check within seconds instead of waiting out the
interval.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  appwatch watch

  # Run as background daemon, checking hourly
  appwatch watch --daemon --interval 1h

  # Stop the daemon
  appwatch watch --stop

  # Is it running?
  appwatch watch --status`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "report whether the daemon is running")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between checks (default from config, 6h)")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: <data-dir>/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFileFlag, "log-file", "", "daemon log file (default: <data-dir>/watch.log)")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := watchPIDFile
	if pidFile == "" {
		pidFile = cfg.PIDFilePath()
	}
	logPath := watchLogFileFlag
	if logPath == "" {
		logPath = filepath.Join(cfg.DataDir, "watch.log")
	}

	if watchStatus {
		running, err := watcher.IsDaemonRunning(pidFile)
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}
		if running {
			fmt.Println("Daemon is running")
		} else {
			fmt.Println("Daemon is not running")
		}
		return nil
	}

	if watchStop {
		return stopWatchDaemon(pidFile)
	}

	if watchDaemon {
		interval := ""
		if watchInterval > 0 {
			interval = watchInterval.String()
		}
		if err := watcher.StartDaemon(pidFile, logPath, interval); err != nil {
			return err
		}
		fmt.Printf("Daemon started (PID file %s, log %s)\n", pidFile, logPath)
		return nil
	}

	w, err := buildWatcher(cfg)
	if err != nil {
		return err
	}

	if watchDaemonChild {
		return w.RunDaemon(pidFile)
	}
	return runWatchForeground(w)
}

func buildWatcher(cfg *config.Config) (*watcher.Watcher, error) {
	svc, _, err := newService(cfg)
	if err != nil {
		return nil, err
	}
	// The history handle stays open for the watcher's lifetime; the
	// process exit closes it.

	interval := cfg.WatchInterval
	if watchInterval > 0 {
		interval = watchInterval
	}
	return watcher.New(svc, watcher.Options{
		Interval: interval,
		Notify:   cfg.WatchNotify,
	})
}

func runWatchForeground(w *watcher.Watcher) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	fmt.Println("Watching for updates. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh

	fmt.Println("\nStopping...")
	return w.Stop()
}

func stopWatchDaemon(pidFile string) error {
	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}
	if err := watcher.StopDaemon(pidFile); err != nil {
		return err
	}
	fmt.Println("Daemon stopped")
	return nil
}
