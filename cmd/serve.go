package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/traineemgr/server/daemon"
	"github.com/traineemgr/server/logger"
)

const envPrefix = "TRAINEEMGR"

func serveCmd(opts *rootOptions, version string) *cobra.Command {
	var logOpts struct{ level, format, file string }
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture daemon and its WebSocket, REST and MCP endpoints",
		Long: `Run the daemon until interrupted.

Settings are read, lowest precedence first, from built-in defaults,
<data-dir>/config.yaml, TRAINEEMGR_* environment variables and flags.
A random token is generated and printed when none is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, opts, version)
			if err != nil {
				return err
			}

			closeLog := logger.Init(logger.Config{
				DataDir: cfg.DataDir,
				DevMode: cfg.DevMode,
				Level:   logOpts.level,
				Format:  logOpts.format,
				File:    logOpts.file,
			})
			defer closeLog()

			d, err := daemon.New(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", cfg.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Token: %s\n", cfg.Token)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}

	def := daemon.Defaults()
	f := cmd.Flags()
	f.String("addr", def.Addr, "Listen address")
	f.String("token", "", "Bearer token for clients (generated when empty)")
	f.Bool("dev", false, "Development mode: log to stdout, allow any CORS origin")
	f.String("screenshot-dir", def.ScreenshotDir, "Folder the screenshot tool writes to")
	f.String("template", "", "Notes template (.docx) copied into each new training folder")
	f.Bool("offline", false, "Disable the remote debrief service")
	f.String("api-base", def.APIBase, "Remote debrief API base URL")
	f.String("api-path", def.APIPath, "Remote debrief API path")
	f.String("viewer-base", def.ViewerBase, "Viewer base URL (defaults to the API base)")
	f.String("viewer-path", def.ViewerPath, "Viewer path prefix")
	f.Duration("remote-timeout", def.Timeout, "Timeout for each remote request")
	f.String("editor", def.Editor, "Image editor opened when an image is single-clicked")
	f.String("opener", def.Opener, "Command used to open images and notes")
	f.Duration("click-window", 0, "Double-click window for gallery clicks")
	f.Duration("settle", def.Settle, "Poll interval while a new screenshot is being written")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins")
	f.Bool("console", def.Console, "Print session events to the terminal")
	f.StringVar(&logOpts.level, "log-level", "", "Log level: debug, info, warn or error")
	f.StringVar(&logOpts.format, "log-format", "", "Log format: text or json")
	f.StringVar(&logOpts.file, "log-file", "", "Log file (defaults to <data-dir>/traineemgr.log)")

	return cmd
}

// loadServeConfig merges defaults, config.yaml, the environment and flags
// into a daemon configuration.
func loadServeConfig(cmd *cobra.Command, opts *rootOptions, version string) (daemon.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "help" {
			return
		}
		if err := v.BindPFlag(configKey(fl.Name), fl); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return daemon.Config{}, bindErr
	}

	opts.dataDir = v.GetString("data_dir")
	configPath := filepath.Join(opts.dataDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return daemon.Config{}, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	cfg := daemon.Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return daemon.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Version = version
	cfg.DataDir = opts.dataDir

	if opts.traineeRoot == "" {
		opts.traineeRoot = v.GetString("trainee_root")
	}
	store, err := opts.store()
	if err != nil {
		return daemon.Config{}, err
	}
	root, err := opts.resolveTraineeRoot(store)
	if err != nil {
		return daemon.Config{}, err
	}
	cfg.TraineeRoot = root

	if cfg.Token == "" {
		cfg.Token = uuid.NewString()
	}
	return cfg, nil
}

// configKey maps a flag name to its config and environment key.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}
