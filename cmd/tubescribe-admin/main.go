// Command tubescribe-admin performs operator tasks against the configured
// database: applying migrations, bootstrapping a superuser and issuing
// invite codes without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/config"
	"github.com/sakif/tubescribe/internal/logging"
	"github.com/sakif/tubescribe/internal/repository/sqlstore"
	"github.com/sakif/tubescribe/internal/service"
)

// passwordEnv is read when --password is not given, so the secret does not
// have to appear in shell history.
const passwordEnv = "TUBESCRIBE_ADMIN_PASSWORD"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is what every subcommand works with once configuration is loaded.
type app struct {
	cfg    *config.Config
	store  *sqlstore.Store
	logger zerolog.Logger
	out    io.Writer
}

func newRootCommand(out io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "tubescribe-admin",
		Short:         "Administrative tasks for a tubescribe deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	// withApp loads configuration, opens (and migrates) the store and runs fn.
	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "console"})

			if cfg.Database.Driver == sqlstore.DriverSQLite {
				if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
					return fmt.Errorf("creating database directory: %w", err)
				}
			}
			store, err := sqlstore.Open(ctx, sqlstore.Config{
				Driver:       cfg.Database.Driver,
				Path:         cfg.Database.Path,
				DSN:          cfg.Database.DSN,
				MaxOpenConns: cfg.Database.MaxOpenConns,
			}, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			return fn(ctx, &app{cfg: cfg, store: store, logger: logger, out: cmd.OutOrStdout()}, args)
		}
	}

	cmd.AddCommand(newMigrateCommand(withApp))
	cmd.AddCommand(newCreateSuperuserCommand(withApp))
	cmd.AddCommand(newInviteCommand(withApp))
	return cmd
}

type appRunner func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

func newMigrateCommand(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			// Opening the store already migrated it.
			fmt.Fprintf(a.out, "migrations applied (%s)\n", a.cfg.Database.Driver)
			return nil
		}),
	}
}

func newCreateSuperuserCommand(withApp appRunner) *cobra.Command {
	var in service.NewUser

	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create an active staff superuser",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv(passwordEnv)
			}
			if in.Password == "" {
				return fmt.Errorf("a password is required: pass --password or set %s", passwordEnv)
			}

			accounts := service.NewAccountService(a.store, a.store, nil, auth.NewPasswordService(), service.AccountConfig{}, a.logger)
			acct, err := accounts.CreateSuperuser(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "superuser %s created (id %s)\n", acct.User.Email, acct.User.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email address (login name)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (default $"+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}
