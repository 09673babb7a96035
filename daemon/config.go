package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/traineemgr/server/capture"
	"github.com/traineemgr/server/launcher"
	"github.com/traineemgr/server/remote"
)

// Config holds the runtime options of `serve`. The mapstructure tags are
// the viper keys, and with the TRAINEEMGR_ prefix, the environment names.
type Config struct {
	Addr    string `mapstructure:"addr"`
	Token   string `mapstructure:"token"`
	DevMode bool   `mapstructure:"dev"`
	Version string `mapstructure:"-"`

	DataDir       string `mapstructure:"data_dir"`
	TraineeRoot   string `mapstructure:"trainee_root"`
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	Template      string `mapstructure:"template"`

	Offline    bool          `mapstructure:"offline"`
	APIBase    string        `mapstructure:"api_base"`
	APIPath    string        `mapstructure:"api_path"`
	ViewerBase string        `mapstructure:"viewer_base"`
	ViewerPath string        `mapstructure:"viewer_path"`
	Timeout    time.Duration `mapstructure:"remote_timeout"`

	Editor      string        `mapstructure:"editor"`
	Opener      string        `mapstructure:"opener"`
	ClickWindow time.Duration `mapstructure:"click_window"`
	Settle      time.Duration `mapstructure:"settle"`

	CORSOrigins []string `mapstructure:"cors_origins"`
	Console     bool     `mapstructure:"console"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Addr:          "127.0.0.1:8390",
		DataDir:       filepath.Join(home, ".traineemgr"),
		ScreenshotDir: filepath.Join(home, "Pictures", "Screenshots"),
		APIBase:       remote.DefaultBaseURL,
		APIPath:       remote.DefaultAPIPath,
		ViewerPath:    remote.DefaultViewerPath,
		Timeout:       30 * time.Second,
		Editor:        launcher.DefaultEditor(),
		Opener:        launcher.DefaultOpener(),
		Settle:        100 * time.Millisecond,
		Console:       true,
	}
}

func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	if c.TraineeRoot == "" {
		return errors.New("trainee root is required")
	}
	if info, err := os.Stat(c.TraineeRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("trainee root %s is not a directory", c.TraineeRoot)
	}
	if c.ScreenshotDir == "" {
		return errors.New("screenshot dir is required")
	}
	return nil
}

func (c Config) settleOptions() capture.SettleOptions {
	return capture.SettleOptions{PollInterval: c.Settle}
}

func (c Config) remoteConfig() remote.Config {
	return remote.Config{
		BaseURL:    c.APIBase,
		APIPath:    c.APIPath,
		ViewerBase: c.ViewerBase,
		ViewerPath: c.ViewerPath,
		Timeout:    c.Timeout,
	}
}
