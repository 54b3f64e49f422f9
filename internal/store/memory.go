package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"iatlab/internal/models"
)

// Memory is an in-process Store with the same semantics as Mongo. It backs
// handler tests and local development without a running database.
type Memory struct {
	mu      sync.RWMutex
	records []models.TestResult
}

func NewMemory() *Memory {
	return &Memory{records: []models.TestResult{}}
}

func (m *Memory) Insert(ctx context.Context, record *models.TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.TestDate.IsZero() {
		record.TestDate = now
	}

	for _, r := range m.records {
		if r.ID == record.ID {
			return ErrDuplicate
		}
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *Memory) List(ctx context.Context, q ListQuery) ([]models.TestResult, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]models.TestResult, 0, len(m.records))
	// Records are appended in creation order; walk backwards for
	// createdAt-descending output.
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		matched = append(matched, r)
	}
	total := int64(len(matched))

	start := (q.Page - 1) * q.Limit
	if start < 0 || start >= total {
		return []models.TestResult{}, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := make([]models.TestResult, 0, end-start)
	for _, r := range matched[start:end] {
		r.SurveyResponses = nil
		r.DeviceInfo = nil
		page = append(page, r)
	}
	return page, total, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (*models.TestResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == oid {
			record := r
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var counts Counts
	counts.Total = int64(len(m.records))
	for _, r := range m.records {
		if !r.CreatedAt.Before(midnight) {
			counts.Today++
		}
	}
	return counts, nil
}

func (m *Memory) Ping(ctx context.Context) error  { return nil }
func (m *Memory) Probe(ctx context.Context) error { return nil }

func (m *Memory) Close(ctx context.Context) error { return nil }
