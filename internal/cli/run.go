package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/register/internal/config"
	"github.com/JonMunkholm/register/internal/csvio"
	"github.com/JonMunkholm/register/internal/logging"
	"github.com/JonMunkholm/register/internal/registration"
	"github.com/JonMunkholm/register/internal/service"
	"github.com/JonMunkholm/register/internal/store"
)

type runOptions struct {
	input        string
	output       string
	seedFile     string
	failedOutput string
	persist      bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register the users in a CSV file",
		Long: "Read prospective users from --input, accept the valid ones, write them with their new " +
			"account numbers to --output and print a JSON summary to stdout. Flags default to the " +
			"REGISTER_INPUT, REGISTER_OUTPUT and REGISTER_SEED_FILE environment variables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.applyDefaults(cfg.Register)

			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runRegister(ctx, cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "CSV file of prospective users")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "CSV file to write registered accounts to")
	cmd.Flags().StringVar(&opts.seedFile, "seed-file", "", "Previous export whose phone numbers and social ids are already registered")
	cmd.Flags().StringVar(&opts.failedOutput, "failed-output", "", "CSV file to write rejected rows to")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store accounts in the database and seed from it (requires DATABASE_URL)")

	return cmd
}

func (o *runOptions) applyDefaults(cfg config.RegisterConfig) {
	if o.input == "" {
		o.input = cfg.Input
	}
	if o.output == "" {
		o.output = cfg.Output
	}
	if o.seedFile == "" {
		o.seedFile = cfg.SeedFile
	}
}

func runRegister(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	st, cleanup, err := openStore(ctx, cfg, opts.persist)
	if err != nil {
		return err
	}
	defer cleanup()

	var svcOpts []service.Option
	if opts.seedFile != "" {
		phones, socials, err := csvio.ReadSeeds(opts.seedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		svcOpts = append(svcOpts, service.WithSeed(registration.Seed{PhoneNumbers: phones, SocialIDs: socials}))
		slog.Info("loaded seed file", "path", opts.seedFile, "phone_numbers", len(phones), "social_ids", len(socials))
	}

	svc := service.New(st, cfg.Upload, svcOpts...)

	if strings.TrimSpace(opts.input) == "" {
		return fmt.Errorf("%w: no input file given", registration.ErrSourceUnavailable)
	}
	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("%w: %v", registration.ErrSourceUnavailable, err)
	}
	defer f.Close()

	res, err := svc.Register(ctx, f, filepath.Base(opts.input))
	if err != nil {
		return err
	}

	// Summary first: it stays on stdout even if an export below fails.
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if err := svc.ExportAccountsFile(res.UploadID, opts.output); err != nil {
		return err
	}
	if opts.failedOutput != "" {
		if err := writeFailedRows(svc, res, opts.failedOutput); err != nil {
			return err
		}
	}
	return nil
}

func writeFailedRows(svc *service.Service, res *service.Result, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", registration.ErrSinkUnavailable, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", registration.ErrSinkUnavailable, cerr)
		}
	}()
	return svc.ExportFailedRows(res.UploadID, f)
}

// openStore returns the Postgres store when persisting and an in-memory one
// otherwise. cleanup releases whatever was opened.
func openStore(ctx context.Context, cfg *config.Config, persist bool) (store.AccountStore, func(), error) {
	if !persist {
		return store.NewMemory(), func() {}, nil
	}
	if !cfg.Database.Enabled() {
		return nil, nil, errors.New("--persist requires DATABASE_URL")
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}
