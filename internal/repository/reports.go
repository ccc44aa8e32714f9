package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrLocationAlreadySet = errors.New("report location already set")
)

// ReportsRepository persists report rows and their delivery flags.
type ReportsRepository interface {
	CreateReport(ctx context.Context, report *domain.Report) error
	GetReport(ctx context.Context, reportID string) (*domain.Report, error)
	// SetLocation writes the storage location once; later calls fail with ErrLocationAlreadySet.
	SetLocation(ctx context.Context, reportID, location string) error
	// MarkDownloaded flags every report stored at location and returns the oldest.
	MarkDownloaded(ctx context.Context, location string) (*domain.Report, error)
	MarkEmailSent(ctx context.Context, reportID string) error
	MarkCallPlaced(ctx context.Context, reportID string) error
	// ListReports returns the user's reports oldest first.
	ListReports(ctx context.Context, userID string) ([]domain.Report, error)
}

// MessagesRepository is the append-only conversation log.
type MessagesRepository interface {
	AppendMessage(ctx context.Context, message *domain.Message) error
	// ListMessages returns up to limit most recent messages in chronological order.
	ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error)
}

// MemoryRepository stores reports and messages in memory for local development.
type MemoryRepository struct {
	mu       sync.RWMutex
	reports  map[string]*domain.Report
	order    []string
	messages []domain.Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		reports: make(map[string]*domain.Report),
	}
}

func (r *MemoryRepository) CreateReport(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; !exists {
		r.order = append(r.order, report.ID)
	}
	r.reports[report.ID] = cloneReport(report)
	return nil
}

func (r *MemoryRepository) GetReport(_ context.Context, reportID string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(report), nil
}

func (r *MemoryRepository) SetLocation(_ context.Context, reportID, location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if report.Location != "" {
		return ErrLocationAlreadySet
	}
	report.Location = location
	return nil
}

func (r *MemoryRepository) MarkDownloaded(_ context.Context, location string) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if location == "" {
		return nil, ErrNotFound
	}
	var first *domain.Report
	for _, id := range r.order {
		report := r.reports[id]
		if report.Location != location {
			continue
		}
		report.Downloaded = true
		if first == nil || report.GeneratedAt.Before(first.GeneratedAt) {
			first = report
		}
	}
	if first == nil {
		return nil, ErrNotFound
	}
	return cloneReport(first), nil
}

func (r *MemoryRepository) MarkEmailSent(_ context.Context, reportID string) error {
	return r.update(reportID, func(report *domain.Report) { report.EmailSent = true })
}

func (r *MemoryRepository) MarkCallPlaced(_ context.Context, reportID string) error {
	return r.update(reportID, func(report *domain.Report) { report.CallPlaced = true })
}

func (r *MemoryRepository) ListReports(_ context.Context, userID string) ([]domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Report, 0)
	for _, id := range r.order {
		report := r.reports[id]
		if report.UserID != userID {
			continue
		}
		items = append(items, *cloneReport(report))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].GeneratedAt.Before(items[j].GeneratedAt)
	})
	return items, nil
}

func (r *MemoryRepository) AppendMessage(_ context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, *message)
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, userID string, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Message, 0)
	for _, message := range r.messages {
		if message.UserID == userID {
			items = append(items, message)
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (r *MemoryRepository) update(reportID string, mutate func(*domain.Report)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	mutate(report)
	return nil
}

func cloneReport(report *domain.Report) *domain.Report {
	if report == nil {
		return nil
	}
	clone := *report
	clone.Plan = append([]string(nil), report.Plan...)
	return &clone
}
