package participant

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository is a map-backed repository for development and tests.
// It issues ObjectID-style ids so handlers behave as they do against MongoDB.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Participant
	order   []string
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Participant)}
}

func clone(p *Participant) *Participant {
	c := *p
	c.Data = append([]byte(nil), p.Data...)
	if len(c.Data) == 0 {
		c.Data = nil
	}
	return &c
}

func (m *MemoryRepository) Insert(_ context.Context, p *Participant) error {
	p.ID = primitive.NewObjectID().Hex()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.records[p.ID] = clone(p)
	m.order = append(m.order, p.ID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) lookup(id string) (*Participant, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrMalformedID
	}
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return clone(p), nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

func (m *MemoryRepository) SetQRCode(_ context.Context, id, qrCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	p.QRCode = qrCode
	return nil
}

func (m *MemoryRepository) List(context.Context) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Participant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *clone(m.records[id]))
	}
	return out, nil
}

func (m *MemoryRepository) CountByStatus(_ context.Context, status Status) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.records {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.records))
	m.records = make(map[string]*Participant)
	m.order = nil
	return n, nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }
