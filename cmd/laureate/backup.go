package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"laureate/internal/config"
	"laureate/internal/memory"

	"github.com/spf13/cobra"
)

// Member names inside a backup archive.
const (
	archiveDB     = "memory.db"
	archiveConfig = "config.json"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the thread memory database and config",
		Long: `Writes a .tar.gz archive with a consistent snapshot of the thread memory
and the config file. The gateway may keep running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if outputPath == "" {
				outputPath = filepath.Join(config.DefaultConfigDir(), "backups",
					"laureate-backup-"+time.Now().Format("20060102-150405")+".tar.gz")
			}

			members, err := writeBackup(cmd.Context(), outputPath, cfg.Memory.DBPath, resolveConfigPath())
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", outputPath)
			for _, m := range members {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", m.name, humanSize(m.size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "archive path (default: ~/.laureate/backups/laureate-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <file.tar.gz>",
		Short: "Restore thread memory and config from a backup archive",
		Long:  "Replaces the thread memory database and the config file with the archive contents. Stop the gateway first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			dbPath := config.ExpandPath(config.Defaults().Memory.DBPath)
			if cfg, _, err := config.LoadOrDefaults(cfgPath); err == nil {
				dbPath = cfg.Memory.DBPath
			}

			if !force {
				for _, p := range []string{dbPath, cfgPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s exists; use --force to overwrite", p)
					}
				}
			}

			restored, err := extractBackup(args[0], dbPath, cfgPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			for _, p := range restored {
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data")
	return cmd
}

type archiveMember struct {
	name string
	size int64
}

// writeBackup snapshots the database through SQLite and archives it with the
// config. Missing sources are skipped; an archive with no members is an error.
func writeBackup(ctx context.Context, outputPath, dbPath, cfgPath string) ([]archiveMember, error) {
	sources := map[string]string{}

	if _, err := os.Stat(dbPath); err == nil {
		tmp, err := os.MkdirTemp("", "laureate-backup-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)

		store, err := memory.NewSQLiteStore(dbPath, logger)
		if err != nil {
			return nil, err
		}
		snap := filepath.Join(tmp, archiveDB)
		err = store.Snapshot(ctx, snap)
		store.Close()
		if err != nil {
			return nil, err
		}
		sources[archiveDB] = snap
	}
	if _, err := os.Stat(cfgPath); err == nil {
		sources[archiveConfig] = cfgPath
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("nothing to back up (db: %s, config: %s)", dbPath, cfgPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	var members []archiveMember
	for _, name := range []string{archiveDB, archiveConfig} {
		src, ok := sources[name]
		if !ok {
			continue
		}
		size, err := addToArchive(tw, name, src)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		members = append(members, archiveMember{name: name, size: size})
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return members, f.Close()
}

func addToArchive(tw *tar.Writer, name, src string) (int64, error) {
	file, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	hdr := &tar.Header{Name: name, Mode: 0o600, Size: info.Size(), ModTime: info.ModTime()}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, file)
}

// extractBackup writes the archive's database and config members to dbPath
// and cfgPath. Stale WAL and SHM files next to dbPath are removed so SQLite
// does not replay them over the restored database.
func extractBackup(archivePath, dbPath, cfgPath string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a gzip archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var restored []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return restored, nil
		}
		if err != nil {
			return restored, err
		}

		var target string
		switch hdr.Name {
		case archiveDB:
			target = dbPath
			for _, suffix := range []string{"-wal", "-shm"} {
				if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
					return restored, err
				}
			}
		case archiveConfig:
			target = cfgPath
		default:
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return restored, err
		}
		if err := writeFile(target, tr); err != nil {
			return restored, err
		}
		restored = append(restored, target)
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return f.Close()
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
