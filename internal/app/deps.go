// Package app assembles the record store, image source and shared clients
// from configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"checkin/internal/blob"
	"checkin/internal/config"
	"checkin/internal/participant"
	"checkin/internal/qrlogo"
	"checkin/internal/store"
)

// Deps are the long-lived dependencies of a process.
type Deps struct {
	Repo   participant.Repository
	Images participant.ImageSource
	Redis  *store.Redis

	closers []func(context.Context) error
}

// Open connects every backend cfg selects. On error anything already
// opened is closed again.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (deps *Deps, err error) {
	d := &Deps{}
	defer func() {
		if err != nil {
			_ = d.Close(context.WithoutCancel(ctx))
		}
	}()

	var mongoDB *store.Mongo
	switch cfg.RecordBackend {
	case config.BackendMongo:
		mongoDB, err = store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, mongoDB.Close)
		repo := participant.NewMongoRepository(mongoDB.Client, cfg.MongoDatabase, cfg.MongoCollection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		d.Repo = repo
	case config.BackendPostgres, config.BackendSQLite:
		driver, dsn, dialect := store.DriverPostgres, cfg.DatabaseURL, participant.Postgres
		if cfg.RecordBackend == config.BackendSQLite {
			driver, dsn, dialect = store.DriverSQLite, cfg.SQLitePath, participant.SQLite
		}
		db, err := store.NewDB(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func(context.Context) error { return db.Close() })
		repo := participant.NewSQLRepository(db.Client, dialect)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("%s schema: %w", dialect.Name, err)
		}
		d.Repo = repo
	case config.BackendMemory:
		d.Repo = participant.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("unknown record backend %q", cfg.RecordBackend)
	}
	log.Info("record store ready", zap.String("backend", cfg.RecordBackend))

	if cfg.ImageBackend == config.ImagesInline {
		d.Images = participant.InlineImages{}
	} else {
		var bs blob.Store
		switch cfg.BlobBackend {
		case config.BlobGridFS:
			if mongoDB == nil {
				return nil, errors.New("gridfs blobs need the mongo record backend")
			}
			bs, err = blob.NewGridFS(mongoDB.Database)
		case config.BlobS3:
			bs, err = blob.NewS3(ctx, blob.S3Options{
				Endpoint:        cfg.S3.Endpoint,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
				Bucket:          cfg.S3.Bucket,
				Region:          cfg.S3.Region,
			}, log)
		case config.BlobMemory:
			bs = blob.NewMemory()
		default:
			err = fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
		}
		if err != nil {
			return nil, err
		}
		d.Images = participant.NewBlobImages(bs)
		if cfg.ImageCacheTTL > 0 {
			d.Images = participant.NewCachedImages(d.Images, cfg.ImageCacheTTL)
		}
	}
	log.Info("image storage ready", zap.String("images", cfg.ImageBackend), zap.String("blobs", cfg.BlobBackend))

	d.Redis = store.NewRedis(cfg.RedisAddr)
	if d.Redis.Configured() {
		d.closers = append(d.closers, func(context.Context) error { return d.Redis.Close() })
		if !d.Redis.Healthy(ctx) {
			log.Warn("redis not reachable", zap.String("addr", cfg.RedisAddr))
		}
	}
	return d, nil
}

// Service builds the participant service. QR codes use cfg.LogoPath when
// enabled.
func (d *Deps) Service(cfg config.App, log *zap.Logger) *participant.Service {
	var qr participant.QRRenderer
	if cfg.QREnabled {
		qr = qrlogo.NewGenerator(cfg.LogoPath)
	}
	return participant.NewService(d.Repo, d.Images, qr, cfg.BaseURL, log)
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
