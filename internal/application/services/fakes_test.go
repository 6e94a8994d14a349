package services_test

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/providers"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

// memoryFeedbackRepo is an in-memory FeedbackRepository honouring filters
type memoryFeedbackRepo struct {
	mu        sync.Mutex
	items     []*entities.Feedback
	createErr error
	countErr  error
	calls     int
}

func (r *memoryFeedbackRepo) add(projectID *string, rating *int, createdAt time.Time) {
	r.items = append(r.items, &entities.Feedback{
		ID:        fmt.Sprintf("f-%d", len(r.items)+1),
		ProjectID: projectID,
		Message:   "feedback",
		Rating:    rating,
		CreatedAt: createdAt,
	})
}

func (r *memoryFeedbackRepo) match(f *entities.Feedback, filter repositories.FeedbackFilter) bool {
	switch {
	case filter.ProjectID != nil:
		if f.ProjectID == nil || *f.ProjectID != *filter.ProjectID {
			return false
		}
	case filter.Unassigned:
		if f.ProjectID != nil {
			return false
		}
	}
	if filter.Rating != nil && (f.Rating == nil || *f.Rating != *filter.Rating) {
		return false
	}
	if filter.CreatedAfter != nil && f.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	return true
}

func (r *memoryFeedbackRepo) Create(ctx context.Context, feedback *entities.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.createErr != nil {
		return r.createErr
	}
	r.items = append(r.items, feedback)
	return nil
}

func (r *memoryFeedbackRepo) GetByID(ctx context.Context, id string) (*entities.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.items {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, apperrors.NewNotFoundError("feedback not found")
}

func (r *memoryFeedbackRepo) List(ctx context.Context, filter repositories.FeedbackFilter, opts repositories.ListOptions) ([]*entities.Feedback, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*entities.Feedback
	for _, f := range r.items {
		if r.match(f, filter) {
			matched = append(matched, f)
		}
	}
	total := len(matched)
	start := min(opts.Offset, total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *memoryFeedbackRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.items {
		if f.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFoundError("feedback not found")
}

func (r *memoryFeedbackRepo) Count(ctx context.Context, filter repositories.FeedbackFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.countErr != nil {
		return 0, r.countErr
	}
	count := 0
	for _, f := range r.items {
		if r.match(f, filter) {
			count++
		}
	}
	return count, nil
}

func (r *memoryFeedbackRepo) AverageRating(ctx context.Context, filter repositories.FeedbackFilter) (*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, n := 0, 0
	for _, f := range r.items {
		if f.Rating != nil && r.match(f, filter) {
			sum += *f.Rating
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(n)
	return &avg, nil
}

func (r *memoryFeedbackRepo) GroupByProject(ctx context.Context, filter repositories.FeedbackFilter) ([]repositories.ProjectCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	unassigned := 0
	for _, f := range r.items {
		if !r.match(f, filter) {
			continue
		}
		if f.ProjectID == nil {
			unassigned++
			continue
		}
		counts[*f.ProjectID]++
	}

	var groups []repositories.ProjectCount
	for id, count := range counts {
		id := id
		groups = append(groups, repositories.ProjectCount{ProjectID: &id, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool { return *groups[i].ProjectID < *groups[j].ProjectID })
	if unassigned > 0 {
		groups = append(groups, repositories.ProjectCount{Count: unassigned})
	}
	return groups, nil
}

// memoryProjectRepo is an in-memory ProjectRepository
type memoryProjectRepo struct {
	mu          sync.Mutex
	projects    map[string]*entities.Project
	batchCalls  int
	// conflicts is the number of upcoming Creates rejected as duplicates
	conflicts int
}

func newMemoryProjectRepo(projects ...*entities.Project) *memoryProjectRepo {
	r := &memoryProjectRepo{projects: map[string]*entities.Project{}}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	return r
}

func (r *memoryProjectRepo) Create(ctx context.Context, project *entities.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.APIKey == project.APIKey {
			return apperrors.NewConflictError("duplicate api key")
		}
	}
	if r.conflicts > 0 {
		r.conflicts--
		return apperrors.NewConflictError("duplicate api key")
	}
	copied := *project
	r.projects[project.ID] = &copied
	return nil
}

func (r *memoryProjectRepo) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.projects[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError("project not found")
}

func (r *memoryProjectRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCalls++
	var found []*entities.Project
	for _, id := range ids {
		if p, ok := r.projects[id]; ok {
			found = append(found, p)
		}
	}
	return found, nil
}

func (r *memoryProjectRepo) GetByAPIKey(ctx context.Context, apiKey string) (*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.APIKey == apiKey {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFoundError("project not found")
}

func (r *memoryProjectRepo) List(ctx context.Context, filter repositories.ProjectFilter) ([]*entities.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*entities.Project
	for _, p := range r.projects {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r *memoryProjectRepo) Update(ctx context.Context, project *entities.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return apperrors.NewNotFoundError("project not found")
	}
	copied := *project
	r.projects[project.ID] = &copied
	return nil
}

func (r *memoryProjectRepo) UpdateAPIKey(ctx context.Context, id, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return apperrors.NewNotFoundError("project not found")
	}
	p.APIKey = apiKey
	return nil
}

func (r *memoryProjectRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return apperrors.NewNotFoundError("project not found")
	}
	delete(r.projects, id)
	return nil
}

func (r *memoryProjectRepo) Count(ctx context.Context, filter repositories.ProjectFilter) (int, error) {
	list, _ := r.List(ctx, filter)
	return len(list), nil
}

// MockCacheProvider is an in-memory CacheProvider
type MockCacheProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Incr(ctx context.Context, key string, expirationSeconds int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *MockCacheProvider) SetNX(ctx context.Context, key string, value []byte, expirationSeconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockCacheProvider) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// MockEventBus delivers published events to local subscribers synchronously
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.FeedbackEvent
	published   []*entities.FeedbackEvent
	channels    []string
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.FeedbackEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.FeedbackEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	m.channels = append(m.channels, channel)
	for _, ch := range m.subscribers[channel] {
		ch <- event
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.FeedbackEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.FeedbackEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) Published() ([]*entities.FeedbackEvent, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.FeedbackEvent(nil), m.published...), append([]string(nil), m.channels...)
}

// MockEmailProvider is a testify mock of providers.EmailProvider
type MockEmailProvider struct {
	mock.Mock
	name  string
	order *[]string
}

func newMockEmailProvider(name string, order *[]string) *MockEmailProvider {
	return &MockEmailProvider{name: name, order: order}
}

func (m *MockEmailProvider) Name() string {
	return m.name
}

func (m *MockEmailProvider) Send(ctx context.Context, msg entities.EmailMessage) (string, error) {
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockNotifier is a testify mock of services.FeedbackNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyFeedback(ctx context.Context, data entities.FeedbackEmailData) entities.EmailSendResult {
	args := m.Called(ctx, data)
	return args.Get(0).(entities.EmailSendResult)
}

func ptr[T any](v T) *T {
	return &v
}
