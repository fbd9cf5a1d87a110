package participant

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// QRRenderer turns a URL into PNG bytes.
type QRRenderer interface {
	PNG(targetURL string) ([]byte, error)
}

// Service coordinates registration, status changes and the dashboard.
type Service struct {
	repo    Repository
	images  ImageSource
	qr      QRRenderer
	baseURL string
	log     *zap.Logger
}

// NewService creates a service. qr may be nil to disable QR codes.
func NewService(repo Repository, images ImageSource, qr QRRenderer, baseURL string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, images: images, qr: qr, baseURL: baseURL, log: log}
}

// DetailURL is the public address of a participant's detail page.
func (s *Service) DetailURL(id string) string {
	return s.baseURL + "/participant/" + id
}

// QREnabled reports whether registrations get a QR code.
func (s *Service) QREnabled() bool { return s.qr != nil }

// Register stores a new participant with the default status. With QR codes
// enabled the record is written twice: once on insert and once with the
// code, so a failure in between leaves a record without one.
func (s *Service) Register(ctx context.Context, in Registration) (*Participant, error) {
	if in.Filename == "" {
		return nil, fmt.Errorf("%w: no selected file", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: no file provided", ErrInvalidInput)
	}

	p := &Participant{
		Name:     orDefault(in.Name, DefaultName),
		Email:    orDefault(in.Email, DefaultEmail),
		Phone:    orDefault(in.Phone, DefaultPhone),
		Filename: in.Filename,
		Status:   StatusNotEntered,
	}

	img := Image{ContentType: mimetype.Detect(in.Data).String(), Data: in.Data}
	if err := s.images.Attach(ctx, p, img); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	s.log.Info("participant registered", zap.String("id", p.ID), zap.String("filename", p.Filename))

	if s.qr == nil {
		return p, nil
	}

	png, err := s.qr.PNG(s.DetailURL(p.ID))
	if err != nil {
		return p, fmt.Errorf("generate qr code for %s: %w", p.ID, err)
	}
	code := base64.StdEncoding.EncodeToString(png)
	if err := s.repo.SetQRCode(ctx, p.ID, code); err != nil {
		return p, fmt.Errorf("save qr code for %s: %w", p.ID, err)
	}
	p.QRCode = code
	return p, nil
}

// Get returns a participant by id.
func (s *Service) Get(ctx context.Context, id string) (*Participant, error) {
	return s.repo.Get(ctx, id)
}

// Image resolves a participant's photo.
func (s *Service) Image(ctx context.Context, id string) (*Image, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.HasImage() {
		return nil, ErrNoImage
	}
	return s.images.Resolve(ctx, p)
}

// QRCode renders the participant's QR code on demand.
func (s *Service) QRCode(ctx context.Context, id string) ([]byte, error) {
	if s.qr == nil {
		return nil, ErrQRDisabled
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.QRCode != "" {
		if b, err := base64.StdEncoding.DecodeString(p.QRCode); err == nil {
			return b, nil
		}
	}
	return s.qr.PNG(s.DetailURL(p.ID))
}

// UpdateStatus moves a participant to "In Campus" or "Outside Campus".
// The status is validated before the id.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	next, err := ParseTransition(status)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return err
	}
	s.log.Info("participant status updated", zap.String("id", id), zap.String("status", string(next)))
	return nil
}

// DashboardRow is one participant as shown on the dashboard.
type DashboardRow struct {
	Participant
	ImageURL string
	HasImage bool
}

// DashboardView aggregates every participant and the on-site counts.
type DashboardView struct {
	Participants      []DashboardRow
	InCampus          int64
	OutsideCampus     int64
	TotalParticipants int
}

// Dashboard scans every record and counts the two on-site states.
func (s *Service) Dashboard(ctx context.Context) (*DashboardView, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	in, err := s.repo.CountByStatus(ctx, StatusInCampus)
	if err != nil {
		return nil, fmt.Errorf("count in campus: %w", err)
	}
	out, err := s.repo.CountByStatus(ctx, StatusOutsideCampus)
	if err != nil {
		return nil, fmt.Errorf("count outside campus: %w", err)
	}

	view := &DashboardView{
		Participants:      make([]DashboardRow, 0, len(all)),
		InCampus:          in,
		OutsideCampus:     out,
		TotalParticipants: len(all),
	}
	for _, p := range all {
		row := DashboardRow{Participant: p, HasImage: p.HasImage()}
		row.Data = nil
		if row.HasImage {
			row.ImageURL = "/image/" + p.ID
		}
		view.Participants = append(view.Participants, row)
	}
	return view, nil
}

// Wipe deletes every participant, then releases the images they referenced.
// Release failures are logged and do not fail the wipe.
func (s *Service) Wipe(ctx context.Context) (int64, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}

	released := 0
	for i := range all {
		p := &all[i]
		if p.ImageID == "" {
			continue
		}
		if err := s.images.Release(ctx, p); err != nil {
			s.log.Warn("failed to release image", zap.String("id", p.ID), zap.String("image_id", p.ImageID), zap.Error(err))
			continue
		}
		released++
	}
	s.log.Warn("participants wiped", zap.Int64("deleted", n), zap.Int("images_released", released))
	return n, nil
}

// Ping checks the record store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
