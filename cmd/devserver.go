package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pders01/restodash/internal/config"
	"github.com/pders01/restodash/internal/devapi"
	"github.com/pders01/restodash/internal/metrics"
	"github.com/pders01/restodash/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 5 * time.Second

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stand-in for the restaurant API",
	Long: `Run an in-memory restaurant API for development.

Profile writes can be made to fail or slow down, which is how the
rollback of a profile update is tried out by hand. Failure settings are
re-read whenever the config file, or any file given with --watch,
changes.

Examples:
  restodash devserver
  restodash devserver --addr :8080 --latency 2s
  restodash devserver --fail-writes 1
  restodash devserver --watch faults.toml`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	rootCmd.AddCommand(devserverCmd)

	flags := devserverCmd.Flags()
	flags.String("addr", "", "Listen address (default localhost:3333)")
	flags.String("restaurant-name", "", "Name of the managed restaurant")
	flags.Int("fail-writes", 0, "Fail the next n profile writes")
	flags.Bool("always-fail", false, "Fail every profile write")
	flags.Duration("latency", 0, "Delay every profile write")
	flags.StringSlice("watch", nil, "Extra TOML files with devserver settings to watch")

	bindFlags(flags, map[string]string{
		"devserver.addr":            "addr",
		"devserver.restaurant_name": "restaurant-name",
		"devserver.fail_writes":     "fail-writes",
		"devserver.always_fail":     "always-fail",
		"devserver.latency":         "latency",
		"devserver.watch":           "watch",
	})
}

func runDevserver(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	dev := settings.DevServer
	logger := slog.Default().With("component", "devserver")

	registry := prometheus.NewRegistry()
	collector := metrics.New(metrics.WithRegistry(registry))

	server := devapi.New(models.ManagedRestaurant{Name: dev.RestaurantName},
		devapi.WithRecorder(collector),
		devapi.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		devapi.WithLogger(logger),
		devapi.WithFaults(faultsFrom(dev)),
	)

	reloader := &faultReloader{
		fs:         afero.NewOsFs(),
		configFile: viper.ConfigFileUsed(),
		extra:      dev.Watch,
		server:     server,
		logger:     logger,
	}
	for _, path := range reloader.extra {
		if err := mergeSettingsFile(reloader.fs, path); err != nil {
			return err
		}
	}
	if len(reloader.extra) > 0 {
		reloader.reload()
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              dev.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	var wg conc.WaitGroup

	wg.Go(func() {
		defer stop()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	})

	if watched := reloader.paths(); len(watched) > 0 {
		wg.Go(func() {
			err := watchFiles(ctx, watched, func(path string) {
				logger.Debug("settings file changed", "path", path)
				reloader.reload()
			})
			if err != nil {
				logger.Warn("file watch stopped", "error", err)
			}
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %q on http://%s\n", dev.RestaurantName, dev.Addr)
	fmt.Fprintln(out, "  Metrics at /metrics, press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
	wg.Wait()

	select {
	case err := <-errc:
		return fmt.Errorf("devserver failed: %w", err)
	default:
	}

	reads, writes := server.Counts()
	fmt.Fprintf(out, "✓ Stopped after %d reads and %d profile writes\n", reads, writes)
	return nil
}

// faultReloader re-reads the devserver settings and applies them to the
// stub. Runs are serialized since they mutate the global viper instance.
type faultReloader struct {
	mu         sync.Mutex
	fs         afero.Fs
	configFile string
	extra      []string
	server     *devapi.Server
	logger     *slog.Logger
}

// paths returns every file whose change triggers a reload
func (r *faultReloader) paths() []string {
	var paths []string
	if r.configFile != "" {
		paths = append(paths, r.configFile)
	}
	return append(paths, r.extra...)
}

func (r *faultReloader) reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			r.logger.Warn("failed to read config", "path", r.configFile, "error", err)
		}
	}
	// Re-reading the config file drops earlier merges
	for _, path := range r.extra {
		if err := mergeSettingsFile(r.fs, path); err != nil {
			r.logger.Warn("failed to merge settings", "path", path, "error", err)
		}
	}

	s, err := config.Load()
	if err != nil {
		r.logger.Warn("failed to reload settings", "error", err)
		return
	}

	faults := faultsFrom(s.DevServer)
	r.server.SetFaults(faults)
	r.logger.Info("faults reloaded",
		"fail_writes", faults.FailWrites,
		"always_fail", faults.AlwaysFail,
		"latency", faults.Latency,
	)
}

// faultsFrom maps devserver settings to the stub's fault injection
func faultsFrom(s config.DevServerSettings) devapi.Faults {
	faults := devapi.Faults{
		FailWrites: s.FailWrites,
		AlwaysFail: s.AlwaysFail,
		Latency:    s.Latency,
	}
	if faults.FailWrites < 0 {
		faults.FailWrites = 0
	}
	if faults.Latency < 0 {
		faults.Latency = 0
	}
	return faults
}

// mergeSettingsFile layers a TOML file over the loaded configuration
func mergeSettingsFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := viper.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("failed to merge %s: %w", path, err)
	}
	return nil
}

// watchFiles calls onChange whenever one of paths is written or replaced.
// Parent directories are watched so editors that swap files are seen too.
func watchFiles(ctx context.Context, paths []string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !wanted[event.Name] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
