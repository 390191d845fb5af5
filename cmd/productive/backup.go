package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"productive-cloud/internal/backup"
	"productive-cloud/internal/domain"
	"productive-cloud/internal/transport"

	"github.com/spf13/cobra"
)

func (a *app) backupDir() string {
	return filepath.Join(filepath.Dir(a.cfg.DataPath), "backups")
}

func exportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every dataset to a backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if out == "" {
				store, err := backup.NewDirStore(a.backupDir())
				if err != nil {
					return err
				}
				name, err := backup.Save(ctx, a.store, store, now())
				if err != nil {
					return err
				}
				fmt.Printf("Backup written to %s\n", filepath.Join(a.backupDir(), name))
				return nil
			}

			f, err := backup.Export(ctx, a.store, now())
			if err != nil {
				return err
			}
			data, err := f.Marshal()
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported %d modules to %s\n", f.ExportInfo.TotalModules, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default: the backups directory)")
	return cmd
}

func importCmd(a *app) *cobra.Command {
	var fromBackups bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace local datasets with the contents of an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				restored []string
				err      error
			)
			if fromBackups {
				var store *backup.DirStore
				if store, err = backup.NewDirStore(a.backupDir()); err != nil {
					return err
				}
				restored, err = backup.Load(ctx, store, args[0], a.store, now())
			} else {
				var data []byte
				if data, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				types, rerr := backup.Restore(ctx, a.store, data, now())
				err = rerr
				for _, dt := range types {
					restored = append(restored, string(dt))
				}
			}
			if err != nil {
				return err
			}

			fmt.Printf("Imported %v\n", restored)
			return a.uploadImported(ctx, restored)
		},
	}

	cmd.Flags().BoolVar(&fromBackups, "backup", false, "treat the argument as a name in the backups directory")
	return cmd
}

// uploadImported overwrites the server copies with the imported datasets so
// the next sync does not hand the older remote data back.
func (a *app) uploadImported(ctx context.Context, types []string) error {
	if a.client.BaseURL() == "" {
		return nil
	}
	for _, key := range types {
		data, ok, err := a.store.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		resp, err := a.client.Save(ctx, domain.DataType(key), data)
		if errors.Is(err, transport.ErrUnauthenticated) {
			return nil
		}
		if err != nil {
			fmt.Printf("  %-10s upload failed: %v (run sync later)\n", key, err)
			continue
		}
		if err := a.store.SetLastSync(ctx, key, resp.Timestamp); err != nil {
			return err
		}
		fmt.Printf("  %-10s uploaded (version %d)\n", key, resp.Version)
	}
	return nil
}

func backupsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups in the backups directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := backup.NewDirStore(a.backupDir())
			if err != nil {
				return err
			}
			files, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No backups yet.")
				return nil
			}
			for _, f := range files {
				fmt.Printf("  %-50s %8d bytes  %s\n", f.Name, f.Size, f.Modified.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
