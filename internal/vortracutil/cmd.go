// Package vortracutil builds the command-line surface over the
// internal pipeline: a Cfg type embedding a *viper.Viper, a Root
// cobra.Command plus one subcommand per pipeline entry point, and an
// options table binding flags/env vars/defaults. PersistentPreRunE only
// records the configuration file path; the subcommands read that file
// as XML through loadConfig.
package vortracutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wujk1122/vortrac/internal/config"
	"github.com/wujk1122/vortrac/internal/vortracerr"
)

// Version is set at release time.
const Version = "0.1.0"

// Cfg holds the CLI's cobra command tree and layered configuration.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, runCmd, centerCmd, pressureCmd *cobra.Command

	Log logrus.FieldLogger
}

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig builds the cobra command tree and binds its flags.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New(), Log: logrus.StandardLogger()}

	cfg.Root = &cobra.Command{
		Use:   "vortrac",
		Short: "Tropical cyclone center, RMW and pressure estimation from a single Doppler radar volume.",
		Long: `vortrac estimates a tropical cyclone's center position, radius of
maximum wind, tangential wind profile and central pressure from one
ground-based Doppler radar volume at a time.

Configuration can be changed with a configuration file (--config), with
command-line flags, or with environment variables in the form
'VORTRAC_var'. See https://github.com/spf13/viper for precedence rules.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version number.",
		DisableAutoGenTag: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("vortrac v%s\n", Version)
		},
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline against a configured radar/vortex pair.",
		Long: `run analyzes volumes one at a time: Preprocess -> CappiBuilder ->
CenterFinder -> CenterChooser -> GBVTDRing/HVVP -> VortexSynth, appending
each volume's result to the persisted vortex and simplex lists.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cfg)
		},
	}

	cfg.centerCmd = &cobra.Command{
		Use:               "center",
		Short:             "Run Preprocess, CenterFinder and CenterChooser only, printing the chosen per-level centers.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCenter(cfg)
		},
	}

	cfg.pressureCmd = &cobra.Command{
		Use:               "pressure",
		Short:             "Print the most recent persisted central pressure estimate.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPressure(cfg)
		},
	}

	cfg.Root.AddCommand(cfg.versionCmd, cfg.runCmd, cfg.centerCmd, cfg.pressureCmd)

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "config specifies the XML configuration file location.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name:       "vortexlist",
			usage:      "vortexlist specifies the path to the persisted VortexList XML file.",
			defaultVal: "vortexlist.xml",
			flagsets:   []*pflag.FlagSet{cfg.runCmd.Flags(), cfg.pressureCmd.Flags()},
		},
		{
			name:       "simplexlist",
			usage:      "simplexlist specifies the path to the persisted SimplexList XML file.",
			defaultVal: "simplexlist.xml",
			flagsets:   []*pflag.FlagSet{cfg.runCmd.Flags()},
		},
		{
			name:       "poolsize",
			usage:      "poolsize bounds the number of concurrent ring/layer worker goroutines.",
			shorthand:  "p",
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{cfg.runCmd.Flags(), cfg.centerCmd.Flags()},
		},
	}

	for _, opt := range options {
		for _, fs := range opt.flagsets {
			switch v := opt.defaultVal.(type) {
			case string:
				if opt.shorthand != "" {
					fs.StringP(opt.name, opt.shorthand, v, opt.usage)
				} else {
					fs.String(opt.name, v, opt.usage)
				}
			case int:
				if opt.shorthand != "" {
					fs.IntP(opt.name, opt.shorthand, v, opt.usage)
				} else {
					fs.Int(opt.name, v, opt.usage)
				}
			}
			cfg.BindPFlag(opt.name, fs.Lookup(opt.name))
		}
	}
	cfg.SetEnvPrefix("VORTRAC")
	cfg.AutomaticEnv()

	return cfg
}

// setConfig records the --config path on the viper instance. Viper never
// reads the file itself; loadConfig parses it with config.XMLReader.
func setConfig(cfg *Cfg) error {
	if cfgPath := cfg.GetString("config"); cfgPath != "" {
		cfg.SetConfigFile(cfgPath)
	}
	return nil
}

// loadConfig reads the configured XML file via config.XMLReader and
// reports any failure as ConfigError. RunLoop stops on a ConfigError
// and logs and skips every other per-volume vortracerr.Kind.
func loadConfig(cfg *Cfg) (config.Config, error) {
	path := cfg.GetString("config")
	if path == "" {
		return config.Config{}, vortracerr.New(vortracerr.ConfigError, "vortrac: --config is required")
	}
	reader := config.XMLReader{}
	c, err := reader.Read(path)
	if err != nil {
		return config.Config{}, vortracerr.Wrap(vortracerr.ConfigError, err, "vortrac: cannot parse configuration file %s", path)
	}
	return c, nil
}

// Execute runs the command tree and exits with status 1 whenever it
// returns an error: a ConfigError, an Aborted run loop, or a
// command-line usage error. The subcommands log and absorb every other
// vortracerr.Kind a volume produces.
func Execute() {
	cfg := InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
