package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rohianon/folio/cmd/folio/internal/client"
	"github.com/Rohianon/folio/cmd/folio/internal/localstore"
	"github.com/Rohianon/folio/cmd/folio/internal/output"
	"github.com/Rohianon/folio/pkg/config"
	"github.com/Rohianon/folio/pkg/fetch"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/refresh"
	"github.com/Rohianon/folio/pkg/render"
	"github.com/Rohianon/folio/pkg/state"
	"github.com/Rohianon/folio/pkg/telemetry"
)

const (
	version    = "1.0.0"
	configName = "folio"

	// Commands annotated with logMode=file keep log lines off the terminal.
	logMode     = "logMode"
	logModeFile = "file"
	logModeLive = "live"
)

var (
	cfgFile string
	outputFmt string
	apiURL  string
	verbose bool

	cfg      *config.Config
	provider *telemetry.Provider
	logFile  *os.File

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "folio - portfolio analytics in your terminal",
	Long: titleStyle.Render(`
╔═══════════════════════════════════════════════════════════╗
║  folio - Portfolio Analytics Dashboard                    ║
╚═══════════════════════════════════════════════════════════╝
`) + `
Track holders, holdings, market movers and recommendations from your terminal.

Get started:
  folio holders list         List portfolio holders
  folio portfolio summary    Value, P/L and sector mix for a holder
  folio dashboard            Live auto-refreshing dashboard
  folio --help               Show all commands`,
	Version:            version,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		output.Err(err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.folio/folio.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "format", "f", "table", "output format: table, json")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (overrides api.url)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warn")

	viper.BindPFlag("display.format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	config.Configure(viper.GetViper(), configName)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c

	if err := initLogging(cmd.Annotations[logMode]); err != nil {
		return err
	}

	if err := format.SetCurrency(cfg.Display.Currency); err != nil {
		logger.Warn().Err(err).Str("currency", cfg.Display.Currency).Msg("Unknown display currency, keeping default")
	}

	provider, err = telemetry.Init(cmd.Context(), telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		logger.Warn().Err(err).Msg("Tracing disabled")
		provider = nil
	}

	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	return nil
}

// initLogging sends one-shot commands' logs to stderr at warn (unless
// --verbose), long-running commands at the configured level, and the
// dashboard to a file.
func initLogging(mode string) error {
	level := cfg.Logging.Level
	if mode == "" && !verbose {
		level = "warn"
	}

	path := cfg.Logging.File
	if path == "" && mode == logModeFile {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		path = filepath.Join(dir, "folio.log")
	}

	if path == "" {
		var w io.Writer = os.Stderr
		if cfg.Logging.Pretty {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
		logger.InitWithWriter(configName, level, w)
		return nil
	}

	f, err := logger.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	logger.InitWithWriter(configName, level, f)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func getFormat() string {
	return viper.GetString("display.format")
}

func isJSON() bool {
	return getFormat() == "json"
}

func newAPI() *client.Client {
	return client.New(fetch.New(fetch.Config{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
	}))
}

func openLocal() (*localstore.Store, error) {
	return localstore.Open(cfg.Storage.Path)
}

func newCharts() (*render.ChartRegistry, error) {
	return render.NewChartRegistry(cfg.Charts.Dir, cfg.Charts.Format)
}

func newController(src refresh.Source, opts refresh.Options) *refresh.Controller {
	if opts.ManualEvery == 0 {
		opts.ManualEvery = cfg.Refresh.ManualEvery
		opts.ManualBurst = cfg.Refresh.ManualBurst
	}
	return refresh.New(src, state.New(cfg.History.Capacity), opts)
}

// loadHolder runs one refresh cycle for holderID limited to collections.
func loadHolder(ctx context.Context, holderID int64, collections ...state.Collection) (refresh.Result, error) {
	ctrl := newController(newAPI(), refresh.Options{Collections: collections})
	ctrl.SelectHolder(holderID)
	return ctrl.Refresh(ctx, refresh.TriggerInitial)
}
