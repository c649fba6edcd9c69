// Command biasdaily is a terminal companion for learning one cognitive
// bias a day. It searches the catalog, tracks progress in a local bbolt
// file and can serve everything to MCP clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonwraymond/biasdaily/app"
	"github.com/jonwraymond/biasdaily/config"
	"github.com/jonwraymond/biasdaily/progress"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli holds flag values and lazily built dependencies for one command
// tree.
type cli struct {
	verbose    bool
	configPath string
	dataPath   string
	jsonOut    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "biasdaily",
		Short: "Learn one cognitive bias a day",
		Long: `biasdaily shows a daily cognitive bias, searches the bias catalog,
and tracks favorites, mastered biases and your visit streak.

State is kept in a bbolt file (see --data). Run "biasdaily serve" to
expose the same operations as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: ~/.biasdaily/config.yaml)")
	root.PersistentFlags().StringVar(&c.dataPath, "data", "", "bbolt data file (or set "+config.EnvDataPath+")")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		newSearchCmd(c),
		newHighlightCmd(c),
		newTodayCmd(c),
		newShowCmd(c),
		newViewCmd(c),
		newFavoriteCmd(c),
		newFavoritesCmd(c),
		newMasterCmd(c),
		newProgressCmd(c),
		newRecommendCmd(c),
		newAddCmd(c),
		newDeleteCmd(c),
		newExportCmd(c),
		newImportCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and builds the logger once per invocation.
func (c *cli) init() error {
	path := c.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if c.dataPath != "" {
		cfg.DataPath = c.dataPath
	}
	c.cfg = cfg

	if c.logger != nil {
		return nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	if c.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if cfg.Logging.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	c.logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openApp builds an App over the configured data file, or over memory
// when no file is configured.
func (c *cli) openApp(ctx context.Context) (*app.App, error) {
	var kv progress.KV = progress.NewMemoryKV()
	if c.cfg.DataPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.cfg.DataPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		bolt, err := progress.OpenBolt(c.cfg.DataPath, nil)
		if err != nil {
			return nil, err
		}
		kv = bolt
	}

	loc := c.cfg.Location()
	store := progress.NewStore(progress.Options{KV: kv, Location: loc})

	a, err := app.New(ctx, app.Options{
		Store:        store,
		Mode:         app.Mode(c.cfg.Search.Mode),
		Weights:      c.cfg.SearchWeights(),
		Alpha:        c.cfg.Search.Alpha,
		Location:     loc,
		Logger:       c.logger,
		DefaultLimit: c.cfg.Search.Limit,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c.logger.Debug("opened app",
		zap.String("data", c.cfg.DataPath),
		zap.String("mode", string(a.Mode())),
	)
	return a, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&cli{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
