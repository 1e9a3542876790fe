package services

import (
	"context"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/tools/filesystem"
	"github.com/stretchr/testify/mock"

	"rifa/internal/status"
	"rifa/internal/store"
	"rifa/models"
)

// memStore is an in-memory store.Store with the same transition rules as the
// real backends.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	draw    models.Draw
	lists   int
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	s := &memStore{tickets: make(map[string]models.Ticket)}
	for _, n := range models.AllNumbers() {
		s.tickets[n] = models.Ticket{Number: n, Status: models.StatusAvailable}
	}
	return s
}

func (s *memStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *memStore) Seed(ctx context.Context, reset bool) (int, error) {
	return models.TotalTickets, nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets), nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) List(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	out := make([]models.Ticket, 0, len(s.tickets))
	for _, n := range models.AllNumbers() {
		out = append(out, s.tickets[n])
	}
	return out, nil
}

func (s *memStore) Find(ctx context.Context, number string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[number]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	return &t, nil
}

func (s *memStore) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.Status]int)
	for _, t := range s.tickets {
		counts[t.Status]++
	}
	return counts, nil
}

func (s *memStore) Reserve(ctx context.Context, req store.ReserveRequest) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[req.Number]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	if t.Status != models.StatusAvailable && !t.Expired(req.Now) {
		return nil, status.ErrTicketUnavailable
	}

	buyer := req.Buyer
	now := req.Now
	t = models.Ticket{
		Number:     req.Number,
		Status:     models.StatusReserved,
		Buyer:      &buyer,
		ProofKey:   req.ProofKey,
		ReservedAt: &now,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  &now,
	}
	s.tickets[req.Number] = t
	return &t, nil
}

func (s *memStore) MarkPaid(ctx context.Context, number string, now time.Time) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[number]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	if t.Status != models.StatusReserved {
		return nil, status.ErrInvalidTransition
	}

	t.Status = models.StatusPaid
	t.PaidAt = &now
	t.ExpiresAt = nil
	t.UpdatedAt = &now
	s.tickets[number] = t
	return &t, nil
}

func (s *memStore) Release(ctx context.Context, number string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.tickets[number]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	if prev.Status != models.StatusReserved {
		return nil, status.ErrInvalidTransition
	}

	s.tickets[number] = models.Ticket{Number: number, Status: models.StatusAvailable}
	return &prev, nil
}

func (s *memStore) ReleaseExpired(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []models.Ticket
	for _, n := range models.AllNumbers() {
		t := s.tickets[n]
		if t.Expired(now) {
			released = append(released, t)
			s.tickets[n] = models.Ticket{Number: n, Status: models.StatusAvailable}
		}
	}
	return released, nil
}

func (s *memStore) Draw(ctx context.Context) (models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draw, nil
}

func (s *memStore) FinalizeDraw(ctx context.Context, winning string, now time.Time) (models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draw.Finalized {
		return models.Draw{}, status.ErrDrawFinalized
	}
	s.draw = models.Draw{Finalized: true, WinningNumber: winning, FinalizedAt: &now}
	return s.draw, nil
}

func (s *memStore) Close(ctx context.Context) error { return nil }

type MockProofStorage struct {
	mock.Mock
}

func (m *MockProofStorage) Save(file *filesystem.File, number string) (string, error) {
	args := m.Called(file, number)
	return args.String(0), args.Error(1)
}

func (m *MockProofStorage) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, event string, payload map[string]any) error {
	args := m.Called(ctx, event, payload)
	return args.Error(0)
}
