// Package sheetsync mirrors participant records into a spreadsheet. Each run
// appends the records the sheet does not have yet, publishing photos through
// an Uploader and embedding them with IMAGE formulas.
package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"checkin/internal/participant"
)

// Image cell placeholders.
const (
	UploadFailed  = "Image Upload Failed"
	ImageNotFound = "Image Not Found"
	NoImage       = "No Image"
)

// Header is written to an empty sheet before the first row.
var Header = []string{"_id", "name", "email", "phone", "status", "filename", "image"}

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("sheetsync: another sync is running")

// Sheet is the spreadsheet surface the job needs. Rows and columns are
// 1-based.
type Sheet interface {
	// Column returns the values of column col from row 1 to the last
	// non-empty row, formulas unevaluated.
	Column(ctx context.Context, col int) ([]string, error)
	// AppendRaw appends one row stored exactly as given.
	AppendRaw(ctx context.Context, row []string) error
	// UpdateParsed rewrites cells as if typed by a user.
	UpdateParsed(ctx context.Context, cells []Cell) error
}

// Cell addresses a single value.
type Cell struct {
	Row   int
	Col   int
	Value string
}

// Uploader publishes an image and returns a link a sheet can load.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Records lists every stored participant.
type Records interface {
	List(ctx context.Context) ([]participant.Participant, error)
}

// Locker guards against two jobs appending the same rows.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Options tune a run.
type Options struct {
	DryRun        bool
	SkipCleanup   bool
	CleanupColumn int
}

// Report summarizes a run.
type Report struct {
	Added         int
	Skipped       int
	ImageFailures int
	Cleaned       int
	DryRun        bool
}

// Job runs the mirror once per Run call.
type Job struct {
	records  Records
	images   participant.ImageSource
	sheet    Sheet
	uploader Uploader
	lock     Locker
	opts     Options
	log      *zap.Logger
}

// NewJob wires a job. lock may be nil to run unguarded.
func NewJob(records Records, images participant.ImageSource, sheet Sheet, uploader Uploader, lock Locker, opts Options, log *zap.Logger) *Job {
	if opts.CleanupColumn < 1 {
		opts.CleanupColumn = len(Header)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Job{records: records, images: images, sheet: sheet, uploader: uploader, lock: lock, opts: opts, log: log}
}

// Run appends missing records and then cleans the image column.
func (j *Job) Run(ctx context.Context) (rep Report, err error) {
	rep.DryRun = j.opts.DryRun

	if j.lock != nil {
		release, err := j.lock.Acquire(ctx)
		if err != nil {
			return rep, err
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				j.log.Warn("failed to release sync lock", zap.Error(rerr))
			}
		}()
	}

	ids, err := j.sheet.Column(ctx, 1)
	if err != nil {
		return rep, fmt.Errorf("read id column: %w", err)
	}
	if len(ids) == 0 {
		if j.opts.DryRun {
			j.log.Info("dry run: would write header", zap.Strings("header", Header))
		} else if err := j.sheet.AppendRaw(ctx, Header); err != nil {
			return rep, fmt.Errorf("write header: %w", err)
		}
	}
	existing := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if i == 0 && id == Header[0] {
			continue
		}
		existing[id] = struct{}{}
	}

	all, err := j.records.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("list participants: %w", err)
	}

	for i := range all {
		p := &all[i]
		if _, ok := existing[p.ID]; ok {
			rep.Skipped++
			continue
		}
		row := []string{p.ID, p.Name, p.Email, p.Phone, string(p.Status), p.Filename}
		cell, failed := j.imageCell(ctx, p)
		if failed {
			rep.ImageFailures++
		}
		row = append(row, cell)

		if j.opts.DryRun {
			j.log.Info("dry run: would append row", zap.Strings("row", row))
			rep.Added++
			continue
		}
		if err := j.sheet.AppendRaw(ctx, row); err != nil {
			// rows already appended stay; the next run picks up from here
			return rep, fmt.Errorf("append row for %s: %w", p.ID, err)
		}
		existing[p.ID] = struct{}{}
		rep.Added++
	}
	if rep.Added == 0 {
		j.log.Info("no new rows to add")
	} else {
		j.log.Info("rows added", zap.Int("added", rep.Added), zap.Int("image_failures", rep.ImageFailures))
	}

	if j.opts.SkipCleanup {
		return rep, nil
	}
	n, err := j.cleanup(ctx)
	rep.Cleaned = n
	if err != nil {
		return rep, err
	}
	return rep, nil
}

// imageCell returns the image column value for p and whether producing it
// failed.
func (j *Job) imageCell(ctx context.Context, p *participant.Participant) (string, bool) {
	if !p.HasImage() {
		return NoImage, false
	}
	img, err := j.images.Resolve(ctx, p)
	if err != nil {
		j.log.Warn("failed to load image", zap.String("id", p.ID), zap.Error(err))
		return ImageNotFound, true
	}
	if j.opts.DryRun {
		return ImageFormula("<upload skipped>"), false
	}
	link, err := j.uploader.Upload(ctx, UploadName(p), img.ContentType, img.Data)
	if err != nil {
		j.log.Warn("failed to upload image", zap.String("id", p.ID), zap.Error(err))
		return UploadFailed, true
	}
	return ImageFormula(link), false
}

// cleanup strips one leading apostrophe from every cell of the cleanup
// column so text stored as '=IMAGE(...) becomes a live formula.
func (j *Job) cleanup(ctx context.Context) (int, error) {
	values, err := j.sheet.Column(ctx, j.opts.CleanupColumn)
	if err != nil {
		return 0, fmt.Errorf("read cleanup column: %w", err)
	}
	var cells []Cell
	for i, v := range values {
		if cleaned, ok := strings.CutPrefix(v, "'"); ok {
			cells = append(cells, Cell{Row: i + 1, Col: j.opts.CleanupColumn, Value: cleaned})
		}
	}
	if len(cells) == 0 {
		return 0, nil
	}
	if j.opts.DryRun {
		j.log.Info("dry run: would clean cells", zap.Int("cells", len(cells)))
		return len(cells), nil
	}
	if err := j.sheet.UpdateParsed(ctx, cells); err != nil {
		return 0, fmt.Errorf("clean column %d: %w", j.opts.CleanupColumn, err)
	}
	j.log.Info("image column cleaned", zap.Int("cells", len(cells)))
	return len(cells), nil
}

// ImageFormula embeds link as an in-cell image.
func ImageFormula(link string) string {
	return `=IMAGE("` + strings.ReplaceAll(link, `"`, `""`) + `")`
}

// UploadName is "<name>_<image id><ext>", falling back to the record id for
// inline images and to .png when the upload had no extension.
func UploadName(p *participant.Participant) string {
	ref := p.ImageID
	if ref == "" {
		ref = p.ID
	}
	ext := strings.ToLower(filepath.Ext(p.Filename))
	if ext == "" {
		ext = ".png"
	}
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(p.Name)
	return name + "_" + ref + ext
}
