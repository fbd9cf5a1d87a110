package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkin/internal/app"
	"checkin/internal/cloudinary"
	"checkin/internal/config"
	"checkin/internal/logging"
	"checkin/internal/sheetsync"
)

var (
	spreadsheetID   string
	credentialsFile string
	sheetName       string
	uploaderName    string
	dryRun          bool
	skipCleanup     bool
)

var rootCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror participants into a Google spreadsheet",
	Long: `Appends every participant that is not yet in the spreadsheet, uploading
photos to Google Drive (or Cloudinary) and embedding them with IMAGE formulas.
Afterwards the image column is cleaned so the formulas render.`,
	SilenceUsage: true,
	RunE:         runSync,
}

func init() {
	rootCmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "spreadsheet id (default: $SPREADSHEET_ID)")
	rootCmd.Flags().StringVar(&credentialsFile, "credentials", "", "service account key file (default: $GOOGLE_CREDENTIALS_FILE)")
	rootCmd.Flags().StringVar(&sheetName, "sheet", "", "tab name (default: $SHEET_NAME or the first tab)")
	rootCmd.Flags().StringVar(&uploaderName, "uploader", "", "image uploader: drive or cloudinary (default: $SYNC_UPLOADER)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the rows that would be written without writing them")
	rootCmd.Flags().BoolVar(&skipCleanup, "skip-cleanup", false, "do not strip leading apostrophes from the image column")
}

// applyFlags lets explicit flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.App) {
	if cmd.Flags().Changed("spreadsheet") {
		cfg.Sync.SpreadsheetID = spreadsheetID
	}
	if cmd.Flags().Changed("credentials") {
		cfg.Sync.CredentialsFile = credentialsFile
	}
	if cmd.Flags().Changed("sheet") {
		cfg.Sync.SheetName = sheetName
	}
	if cmd.Flags().Changed("uploader") {
		cfg.Sync.Uploader = uploaderName
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if cfg.Sync.SpreadsheetID == "" {
		return fmt.Errorf("no spreadsheet id: pass --spreadsheet or set SPREADSHEET_ID")
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	sheetsSvc, driveSvc, err := sheetsync.NewGoogleServices(ctx, cfg.Sync.CredentialsFile)
	if err != nil {
		return err
	}
	sheet, err := sheetsync.NewGoogleSheet(ctx, sheetsSvc, cfg.Sync.SpreadsheetID, cfg.Sync.SheetName)
	if err != nil {
		return err
	}

	var uploader sheetsync.Uploader
	switch cfg.Sync.Uploader {
	case config.UploaderCloudinary:
		c, err := cloudinary.NewFromURL(cfg.Sync.CloudinaryURL, "participants")
		if err != nil {
			return err
		}
		uploader = c
	default:
		uploader = sheetsync.NewDriveUploader(driveSvc, cfg.Sync.DriveFolderID)
	}

	var lock sheetsync.Locker
	if deps.Redis.Configured() {
		lock = sheetsync.NewRedisLock(deps.Redis.Client, sheetsync.DefaultLockKey, cfg.Sync.LockTTL)
	} else {
		log.Warn("REDIS_ADDR not set, running without the sync lock")
	}

	job := sheetsync.NewJob(deps.Repo, deps.Images, sheet, uploader, lock, sheetsync.Options{
		DryRun:        dryRun,
		SkipCleanup:   skipCleanup,
		CleanupColumn: cfg.Sync.CleanupColumn,
	}, log)

	log.Info("sync started",
		zap.String("spreadsheet", cfg.Sync.SpreadsheetID),
		zap.String("sheet", sheet.Title()),
		zap.String("uploader", cfg.Sync.Uploader),
		zap.Bool("dry_run", dryRun))

	rep, err := job.Run(ctx)
	log.Info("sync finished",
		zap.Int("added", rep.Added),
		zap.Int("skipped", rep.Skipped),
		zap.Int("image_failures", rep.ImageFailures),
		zap.Int("cleaned", rep.Cleaned),
		zap.Bool("dry_run", rep.DryRun))
	return err
}
