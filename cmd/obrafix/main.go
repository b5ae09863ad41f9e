package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/obrafix/internal/config"
	"github.com/vbonduro/obrafix/internal/db"
	"github.com/vbonduro/obrafix/internal/gallery"
	"github.com/vbonduro/obrafix/internal/gallery/fsmedia"
	"github.com/vbonduro/obrafix/internal/logging"
	"github.com/vbonduro/obrafix/internal/photostore/gcs"
	"github.com/vbonduro/obrafix/internal/photostore/local"
	"github.com/vbonduro/obrafix/internal/report"
	"github.com/vbonduro/obrafix/internal/service"
	"github.com/vbonduro/obrafix/internal/store"
	"github.com/vbonduro/obrafix/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cli holds the writers the commands report to. Reports go to out, logs to
// logOut.
type cli struct {
	out    io.Writer
	logOut io.Writer
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	c := &cli{out: out, logOut: logOut}

	root := &cobra.Command{
		Use:   "obrafix",
		Short: "Repair photo data of obras",
		Long: `obrafix inspects and repairs the photo columns of obra records.

Every command takes at most one obra key. Commands that write only do so
when --apply is given; otherwise they print what they would change.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(logOut)

	root.AddCommand(
		c.scanLocalCmd(),
		c.normalizeCmd(),
		c.reconstructCmd(),
		c.exportGalleryCmd(),
	)
	return root
}

type runFunc func(ctx context.Context, svc *service.RepairService, key string) error

// run wraps fn with configuration, logging and backend setup.
func (c *cli) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, cleanupLog, err := logging.New(cfg.LogLevel, cfg.LogFile, c.logOut)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer cleanupLog()

		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		ctx := cmd.Context()
		captured := &report.Collector{}
		reporter := report.Multi{report.New(cfg.Reporter, logger), captured}

		svc, closeBackend, err := newService(ctx, cfg, reporter, logger)
		if err != nil {
			logger.Error("failed to initialize backend", "backend", cfg.Backend, "error", err)
			return err
		}
		defer closeBackend()

		key := ""
		if len(args) > 0 {
			key = args[0]
		}
		err = fn(ctx, svc, key)
		printCaptured(c.out, captured)
		return err
	}
}

func newService(ctx context.Context, cfg *config.Config, reporter report.Reporter, logger *slog.Logger) (*service.RepairService, func(), error) {
	library := fsmedia.New(cfg.GalleryPath)

	switch cfg.Backend {
	case config.BackendLocal:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		photos, err := local.NewLocalPhotoStore(cfg.PhotoPath, cfg.PhotoPublicBaseURL)
		if err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		logger.Info("using local backend", "db", cfg.DBPath, "photos", cfg.PhotoPath)

		exporter := gallery.NewExporter(library, photos, reporter, logger)
		svc := service.NewRepairService(store.NewObraStore(database), photos, exporter, reporter, cfg.Listing(), logger)
		return svc, func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}, nil

	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		photos, err := gcs.New(ctx, cfg.StorageBucket, cfg.StoragePublicBaseURL)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using remote backend", "bucket", cfg.StorageBucket)

		exporter := gallery.NewExporter(library, photos, reporter, logger)
		svc := service.NewRepairService(postgres.NewObraRepo(pool), photos, exporter, reporter, cfg.Listing(), logger)
		return svc, func() {
			if err := photos.Close(); err != nil {
				logger.Error("failed to close storage client", "error", err)
			}
			pool.Close()
		}, nil
	}
}

func (c *cli) scanLocalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-local [obra]",
		Short: "List photo references that still point at device files",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, svc *service.RepairService, key string) error {
			reports, err := svc.ScanLocal(ctx, key)
			if err != nil {
				return err
			}
			printLocalRefs(c.out, reports)
			return nil
		}),
	}
}

func (c *cli) normalizeCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "normalize [obra]",
		Short: "Rewrite photo lists into the canonical record shape",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, svc *service.RepairService, key string) error {
			reports, err := svc.Normalize(ctx, key, apply)
			printNormalize(c.out, reports, apply)
			return err
		}),
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the normalized columns")
	return cmd
}

func (c *cli) reconstructCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "reconstruct <obra>",
		Short: "Guess section membership of stored photos from listing order",
		Long: `reconstruct assigns the obra's stored photos to checklist sections by the
order the storage listing returns them. The assignment is a guess: review the
printed audit before running again with --apply.`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, svc *service.RepairService, key string) error {
			rep, err := svc.Reconstruct(ctx, key, apply)
			if err != nil {
				return err
			}
			return printReconstruct(c.out, rep, apply)
		}),
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "merge the reconstructed sections into the obra")
	return cmd
}

func (c *cli) exportGalleryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-gallery <obra>",
		Short: "Copy an obra's photos into its media library album",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, svc *service.RepairService, key string) error {
			res, err := svc.ExportGallery(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "album %q: %d exported, %d skipped, %d failed\n", res.Album, res.Exported, res.Skipped, res.Failed)
			return nil
		}),
	}
}
