package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lepinkainen/bookshelf/internal/backup"
)

// BackupCmd represents the backup command
type BackupCmd struct {
	Dir       string `short:"d" help:"Directory for snapshot files (overrides backup.dir)"`
	Compress  bool   `help:"Write zstd-compressed .json.zst snapshots"`
	NoContent bool   `help:"Export page properties only, without block content"`
	Schedule  string `help:"Cron schedule (e.g. \"0 3 * * *\" or @daily); runs until interrupted"`
}

func (b *BackupCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireNotion(false); err != nil {
		return err
	}

	dir := cfg.Backup.Dir
	if b.Dir != "" {
		dir = b.Dir
	}
	opts := backup.WriteOptions{Compress: b.Compress || cfg.Backup.Compress}
	exporter := &backup.Exporter{
		Client:         newNotionClient(cfg),
		DatabaseID:     cfg.Notion.DatabaseID,
		IncludeContent: cfg.Backup.IncludeContent && !b.NoContent,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := func(ctx context.Context) error {
		return runBackup(ctx, exporter, dir, opts)
	}

	if b.Schedule == "" {
		return job(ctx)
	}
	return backup.NewScheduler(b.Schedule, job).Run(ctx)
}

func runBackup(ctx context.Context, exporter *backup.Exporter, dir string, opts backup.WriteOptions) error {
	snap, err := exporter.Export(ctx)
	if err != nil {
		return err
	}

	path, err := backup.Write(dir, snap, opts)
	if err != nil {
		return err
	}

	slog.Info("Backup written", "path", path, "pages", snap.Count, "content", exporter.IncludeContent)
	return nil
}
