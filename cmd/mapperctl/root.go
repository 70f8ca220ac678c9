package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/schema"
)

// envPrefix prefixes the environment variables overriding flags, e.g.
// MAPPER_MAPPING or MAPPER_LOG_LEVEL.
const envPrefix = "MAPPER"

// app is the state shared by the subcommands.
type app struct {
	v   *viper.Viper
	log zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: zerolog.Nop()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "mapperctl",
		Short:         "Inspect class mappings and the SQL compiled for them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (yaml) holding flag defaults")
	flags.StringP("mapping", "m", "", "mapping file (yaml)")
	flags.StringP("dialect", "d", dialect.SQLite, fmt.Sprintf("SQL dialect %v", dialect.Names()))
	flags.String("log-level", zerolog.LevelWarnValue, fmt.Sprintf(
		"logging level [%s|%s|%s]",
		zerolog.LevelDebugValue,
		zerolog.LevelInfoValue,
		zerolog.LevelWarnValue,
	))
	for _, name := range []string{"mapping", "dialect", "log-level"} {
		if err := a.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(newClassesCommand(a))
	cmd.AddCommand(newExplainCommand(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	level, err := zerolog.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// registry loads the mapping file named by the mapping flag.
func (a *app) registry() (*schema.Registry, error) {
	path := a.v.GetString("mapping")
	if path == "" {
		return nil, fmt.Errorf("no mapping file: set --mapping or %s_MAPPING", envPrefix)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("mapping file: %w", err)
	}
	reg := schema.NewRegistry()
	if err := reg.LoadFile(path); err != nil {
		return nil, err
	}
	a.log.Debug().Str("mapping", path).Int("classes", len(reg.Classes())).Msg("mapping loaded")
	return reg, nil
}

func (a *app) dialect() (dialect.Dialect, error) {
	return dialect.Get(a.v.GetString("dialect"))
}
