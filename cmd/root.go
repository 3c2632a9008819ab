// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/observability"
)

var (
	cfgFile string
	appCfg  *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "harvest",
	Short:   "Harvest runs configuration-driven web extraction workflows.",
	Version: Version,
}

func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	// Runs before any command, setting up config and logging.
	v, err := initializeViper()
	if err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		// Initialize a fallback logger so the failure is at least visible.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "harvest"})
		return err
	}
	appCfg = cfg

	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Debug("Starting harvest.", zap.String("version", Version))
	return nil
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = rootPersistentPreRunE
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.harvest/config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for run artifacts")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeViper reads defaults, the config file and the environment.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".harvest"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	if flag := rootCmd.PersistentFlags().Lookup("output-dir"); flag != nil && flag.Changed {
		v.Set("output.directory", flag.Value.String())
	}
	if flag := rootCmd.PersistentFlags().Lookup("log-level"); flag != nil && flag.Changed {
		v.Set("logger.level", flag.Value.String())
	}
	return v, nil
}
