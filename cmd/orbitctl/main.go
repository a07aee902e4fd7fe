// Command orbitctl runs maintenance tasks directly against an Orbit data
// directory. Stop the server first: the store takes an exclusive lock.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/orbitapp/orbit-server/internal/auth"
	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/config"
	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/logger"
	"github.com/orbitapp/orbit-server/internal/service"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "orbitctl:", err)
		os.Exit(1)
	}
}

// app holds what the subcommands share. Built in PersistentPreRunE.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *store.Store
	tags   *tagging.Registry
	userID string
}

func (a *app) requireUser() error {
	if a.userID == "" {
		return errors.New("--user is required")
	}
	return nil
}

func (a *app) entities() *service.EntityService {
	deleter := cascade.NewDeleter(a.store, a.tags, cascade.RetryPolicy{
		Attempts:   a.cfg.Cascade.RetryAttempts,
		Backoff:    a.cfg.Cascade.RetryBackoff,
		MaxBackoff: a.cfg.Cascade.MaxBackoff,
	}, a.log.Logger)
	return service.NewEntityService(a.store, a.tags, deleter, nil, a.log.Logger)
}

func (a *app) imports() *service.ImportService {
	im := importer.New(a.store, a.tags, a.cfg.Import.ChunkSize, a.log.Logger)
	return service.NewImportService(im, nil, a.log.Logger)
}

// NewRootCmd constructs the root command; exposed for tests.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var dataPath, logLevel string

	root := &cobra.Command{
		Use:           "orbitctl",
		Short:         "Maintenance tool for an Orbit data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var args []string
			if dataPath != "" {
				args = append(args, "-data-path", dataPath)
			}
			if logLevel != "" {
				args = append(args, "-log-level", logLevel)
			}
			cfg, err := config.Load(args)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{
				Writer:      cmd.ErrOrStderr(),
				Level:       logger.ParseLevel(cfg.Logger.Level),
				Environment: cfg.App.Environment,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dataPath, "data-path", "", "Data directory (default: DATA_PATH or ~/Orbit/data)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&a.userID, "user", "u", "", "User the command acts for")

	root.AddCommand(newImportCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newReconcileCmd(a))
	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newBackupCmd(a))
	root.AddCommand(newRestoreCmd(a))

	return root
}

// withStore opens the store for the duration of fn.
func withStore(a *app, fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := store.New(a.cfg.DatabasePath(), a.log.Logger, store.NewNoopEmitter())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				a.log.Warn("close store", "error", err)
			}
		}()
		a.store = s
		a.tags = tagging.NewRegistry(s, a.log.Logger)
		return fn(cmd.Context(), cmd, args)
	}
}

func writeJSON(w io.Writer, v any) error {
	if err := json.MarshalWrite(w, v, jsontext.WithIndent("  ")); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func newImportCmd(a *app) *cobra.Command {
	var create []string
	var plan bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import entities from a CSV document",
		Long:  "Imports a CSV document for --user. Existing names are overridden unless passed with --create.",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc := a.imports()
			if plan {
				p, err := svc.Plan(ctx, a.userID, f)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), p)
			}

			choices := make(map[string]importer.Choice, len(create))
			for _, name := range create {
				choices[name] = importer.ChoiceCreate
			}
			report, err := svc.Run(ctx, a.userID, f, choices)
			if report != nil {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			}
			return err
		}),
	}

	cmd.Flags().StringSliceVar(&create, "create", nil, "Duplicate names to insert as new entities")
	cmd.Flags().BoolVar(&plan, "plan", false, "Only list duplicate names; write nothing")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var ids []string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entities as CSV",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := a.imports().Export(ctx, a.userID, ids, w)
			if err != nil {
				return err
			}
			a.log.Info("export complete", "entities", n)
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Entity IDs to export (default: everything the user owns)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete entities and everything that references them",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			res, err := a.entities().Delete(ctx, a.userID, args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recount tag usage and repair drift",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			report, err := a.tags.Reconcile(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		}),
	}
}

func newTokenCmd(a *app) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Access token utilities",
	}

	token.AddCommand(&cobra.Command{
		Use:   "mint",
		Short: "Mint an access token for --user",
		Long:  "Mints a token signed with the key the server uses (ACCESS_TOKEN_KEY or <data-path>/auth.key).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			key := a.cfg.Auth.AccessTokenKey
			if len(key) == 0 {
				var err error
				if key, err = auth.LoadOrGenerateKey(a.cfg.Store.DataPath); err != nil {
					return err
				}
			}
			tokens, err := auth.NewTokenService(hex.EncodeToString(key), a.cfg.Auth.AccessTokenDuration)
			if err != nil {
				return err
			}
			tok, err := tokens.GenerateAccessToken(a.userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	})
	return token
}
