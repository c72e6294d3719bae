package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dwhload/internal/catalog"
	"dwhload/internal/observability"
	"dwhload/internal/ui"
)

// dialectValue is a pflag.Value restricted to the registered dialects.
type dialectValue string

var _ pflag.Value = (*dialectValue)(nil)

func (d *dialectValue) String() string { return string(*d) }

func (d *dialectValue) Set(s string) error {
	name := strings.ToLower(strings.TrimSpace(s))
	if _, ok := catalog.LookupDialect(name); !ok || name == "" {
		return fmt.Errorf("must be one of %s", strings.Join(catalog.Dialects(), ", "))
	}
	*d = dialectValue(name)
	return nil
}

func (d *dialectValue) Type() string { return "dialect" }

var (
	cfgFile     string
	envFile     string
	dialectFlag dialectValue

	settings = viper.New()
	logger   = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:   "dwhload",
		Short: "Build and load a star-schema song-play warehouse",
		Long: `dwhload creates the staging and star-schema tables of the song-play
warehouse and loads them from event and song JSON in S3 (Redshift,
Snowflake) or on local disk (PostgreSQL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := observability.NewLogger(observability.LoggerConfig{
				Level:   settings.GetString("log_level"),
				Verbose: settings.GetBool("verbose"),
				JSON:    settings.GetBool("json_logs"),
				Service: "dwhload",
				Version: Version,
			})
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
)

// Execute runs the root command. Interrupts cancel the running statement.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default dwh.cfg, or $DWHLOAD_CONFIG)")
	flags.StringVar(&envFile, "env-file", "", "directory holding .env and .env.local (default: working directory)")
	flags.Var(&dialectFlag, "dialect", "SQL dialect: "+strings.Join(catalog.Dialects(), ", ")+" (overrides WAREHOUSE.DIALECT)")
	flags.BoolP("verbose", "v", false, "log every statement")
	flags.Bool("json-logs", false, "emit JSON logs")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	settings.SetEnvPrefix("DWHLOAD")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	_ = settings.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = settings.BindPFlag("json_logs", flags.Lookup("json-logs"))
	_ = settings.BindPFlag("log_level", flags.Lookup("log-level"))
}
