package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbitapp/orbit-server/internal/backup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create and manage store backups",
	}

	var output string
	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the store into a backup archive",
		Args:  cobra.NoArgs,
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			svc := backup.NewBackupService(a.store, a.cfg.BackupPath(), version, a.log.Logger)
			res, err := svc.Create(ctx, backup.BackupOptions{OutputPath: output})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}
	create.Flags().StringVarP(&output, "output", "o", "", "Archive path (default: <data-path>/backups)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := backup.NewBackupService(nil, a.cfg.BackupPath(), version, a.log.Logger)
			backups, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range backups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", b.ID, b.Size, b.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := backup.NewBackupService(nil, a.cfg.BackupPath(), version, a.log.Logger)
			return svc.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var mode string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the store from a backup archive",
		Long:  "Restores a backup. full replaces everything; merge writes backup keys over existing data.",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(a, func(ctx context.Context, cmd *cobra.Command, args []string) error {
			svc := backup.NewRestoreService(a.store, a.log.Logger)
			res, err := svc.Restore(ctx, args[0], backup.RestoreOptions{
				Mode:   backup.RestoreMode(mode),
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}

	cmd.Flags().StringVar(&mode, "mode", string(backup.RestoreModeFull), "Restore mode (full, merge)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Verify the archive without writing")
	return cmd
}
