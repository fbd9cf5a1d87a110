package participant

import "context"

// Repository persists participant records. Implementations return
// ErrMalformedID for ids that do not parse into their id format and
// ErrNotFound for well-formed ids with no record.
type Repository interface {
	Insert(ctx context.Context, p *Participant) error
	Get(ctx context.Context, id string) (*Participant, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	SetQRCode(ctx context.Context, id, qrCode string) error
	List(ctx context.Context) ([]Participant, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
