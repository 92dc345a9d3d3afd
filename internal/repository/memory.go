package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

// Memory implementations back the engine when no database is configured
// and in tests. They copy on every read and write.

type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository returns an empty in-memory store.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; ok {
		return ErrConflict
	}
	ticket.Version = 1
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *memoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != ticket.Version {
		return ErrConflict
	}
	ticket.Version++
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	matched := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if matchTicket(t, filter) {
			matched = append(matched, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func matchTicket(t *domain.Ticket, filter TicketFilter) bool {
	if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.AssigneeID != nil && !t.IsAssignedTo(*filter.AssigneeID) {
		return false
	}
	if filter.Category != nil && !strings.EqualFold(t.Category, *filter.Category) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.UrgencyLevels) > 0 && !slices.Contains(filter.UrgencyLevels, t.UrgencyLevel) {
		return false
	}
	if filter.Breached != nil && t.SLABreached != *filter.Breached {
		return false
	}
	return true
}

func (r *memoryTicketRepository) ListActiveIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tickets))
	for id, t := range r.tickets {
		if !t.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryTicketRepository) ListUnassignedIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	pending := make([]*domain.Ticket, 0)
	for _, t := range r.tickets {
		if t.AssignedAgentID == nil && (t.Status == domain.TicketStatusOpen || t.Status == domain.TicketStatusEscalated) {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].UrgencyLevel != pending[j].UrgencyLevel {
			return pending[i].UrgencyLevel < pending[j].UrgencyLevel
		}
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	ids := make([]string, len(pending))
	for i, t := range pending {
		ids[i] = t.ID
	}
	r.mu.RUnlock()
	return ids, nil
}

func (r *memoryTicketRepository) CountActiveByAgent(_ context.Context, agentID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.tickets {
		if t.HoldsCapacity() && *t.AssignedAgentID == agentID {
			count++
		}
	}
	return count, nil
}

type memoryAgentRepository struct {
	mu     sync.Mutex
	agents map[string]*domain.Agent
}

// NewMemoryAgentRepository returns an empty in-memory agent directory.
func NewMemoryAgentRepository() AgentRepository {
	return &memoryAgentRepository{agents: make(map[string]*domain.Agent)}
}

func (r *memoryAgentRepository) Create(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agent.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.agents {
		if agent.Email != "" && strings.EqualFold(existing.Email, agent.Email) {
			return ErrConflict
		}
	}
	stored := agent.Clone()
	stored.CurrentTicketCount = 0
	r.agents[agent.ID] = stored
	agent.CurrentTicketCount = 0
	return nil
}

func (r *memoryAgentRepository) Update(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.agents[agent.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range r.agents {
		if id != agent.ID && agent.Email != "" && strings.EqualFold(existing.Email, agent.Email) {
			return ErrConflict
		}
	}
	stored.Name = agent.Name
	stored.Email = agent.Email
	stored.Role = agent.Role
	stored.Categories = slices.Clone(agent.Categories)
	stored.Skills = slices.Clone(agent.Skills)
	stored.MaxCapacity = agent.MaxCapacity
	stored.AgentLevel = agent.AgentLevel
	stored.UpdatedAt = agent.UpdatedAt
	flipLoadStatus(stored)
	*agent = *stored.Clone()
	return nil
}

func (r *memoryAgentRepository) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return agent.Clone(), nil
}

func (r *memoryAgentRepository) List(_ context.Context, filter AgentFilter) ([]domain.Agent, error) {
	r.mu.Lock()
	result := make([]domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, a.Role) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, a.Status) {
			continue
		}
		if filter.Category != nil && !a.HandlesCategory(*filter.Category) {
			continue
		}
		result = append(result, *a.Clone())
	}
	r.mu.Unlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memoryAgentRepository) Acquire(_ context.Context, id string, mode AcquireMode, at time.Time) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch mode {
	case AcquireAuto:
		if agent.Status != domain.AgentStatusActive || agent.Role != domain.RoleAgent || !agent.HasCapacity() {
			return nil, ErrNotAcquired
		}
	case AcquireManual:
		if !agent.Status.Available() || !agent.HasCapacity() {
			return nil, ErrNotAcquired
		}
	default:
		if !agent.Status.Available() {
			return nil, ErrNotAcquired
		}
	}
	agent.CurrentTicketCount++
	stamp := at
	agent.LastAssignedAt = &stamp
	agent.UpdatedAt = at
	if agent.Status == domain.AgentStatusActive && agent.CurrentTicketCount >= agent.MaxCapacity {
		agent.Status = domain.AgentStatusBusy
	}
	return agent.Clone(), nil
}

func (r *memoryAgentRepository) Release(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	if agent.CurrentTicketCount > 0 {
		agent.CurrentTicketCount--
	}
	agent.UpdatedAt = time.Now().UTC()
	if agent.Status == domain.AgentStatusBusy && agent.HasCapacity() {
		agent.Status = domain.AgentStatusActive
	}
	return agent.Clone(), nil
}

func (r *memoryAgentRepository) SetStatus(_ context.Context, id string, status domain.AgentStatus) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	agent.Status = status
	if status == domain.AgentStatusActive && !agent.HasCapacity() {
		agent.Status = domain.AgentStatusBusy
	}
	agent.UpdatedAt = time.Now().UTC()
	return agent.Clone(), nil
}

func flipLoadStatus(agent *domain.Agent) {
	switch {
	case agent.Status == domain.AgentStatusActive && !agent.HasCapacity():
		agent.Status = domain.AgentStatusBusy
	case agent.Status == domain.AgentStatusBusy && agent.HasCapacity():
		agent.Status = domain.AgentStatusActive
	}
}

type memorySLARuleRepository struct {
	mu    sync.RWMutex
	rules map[domain.UrgencyLevel]domain.SLARule
}

// NewMemorySLARuleRepository returns an empty rule table.
func NewMemorySLARuleRepository() SLARuleRepository {
	return &memorySLARuleRepository{rules: make(map[domain.UrgencyLevel]domain.SLARule)}
}

func (r *memorySLARuleRepository) Upsert(_ context.Context, rule *domain.SLARule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.UrgencyLevel] = *rule
	return nil
}

func (r *memorySLARuleRepository) Get(_ context.Context, level domain.UrgencyLevel) (*domain.SLARule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[level]
	if !ok {
		return nil, ErrNotFound
	}
	return &rule, nil
}

func (r *memorySLARuleRepository) List(_ context.Context) ([]domain.SLARule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]domain.SLARule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].UrgencyLevel < rules[j].UrgencyLevel })
	return rules, nil
}

func (r *memorySLARuleRepository) Delete(_ context.Context, level domain.UrgencyLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[level]; !ok {
		return ErrNotFound
	}
	delete(r.rules, level)
	return nil
}

type memoryCategoryRepository struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

// NewMemoryCategoryRepository returns an empty category list.
func NewMemoryCategoryRepository() CategoryRepository {
	return &memoryCategoryRepository{categories: make(map[string]domain.Category)}
}

func (r *memoryCategoryRepository) Create(_ context.Context, category *domain.Category) error {
	key := strings.ToLower(category.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[key]; ok {
		return ErrConflict
	}
	r.categories[key] = *category
	return nil
}

func (r *memoryCategoryRepository) List(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	categories := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (r *memoryCategoryRepository) Delete(_ context.Context, name string) error {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[key]; !ok {
		return ErrNotFound
	}
	delete(r.categories, key)
	return nil
}

func (r *memoryCategoryRepository) Exists(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.categories[strings.ToLower(name)]
	return ok, nil
}

type memoryTimelineRepository struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewMemoryTimelineRepository returns an empty audit trail.
func NewMemoryTimelineRepository() TimelineRepository {
	return &memoryTimelineRepository{events: make(map[string][]domain.TimelineEvent)}
}

func (r *memoryTimelineRepository) Append(_ context.Context, events ...*domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range events {
		existing := r.events[event.TicketID]
		event.Seq = int64(len(existing)) + 1
		stored := *event
		stored.Payload = cloneMap(event.Payload)
		r.events[event.TicketID] = append(existing, stored)
	}
	return nil
}

func (r *memoryTimelineRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.events[ticketID]
	result := make([]domain.TimelineEvent, len(stored))
	for i, event := range stored {
		result[i] = event
		result[i].Payload = cloneMap(event.Payload)
	}
	return result, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
