package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleet-server/fleet-server-pro/internal/models"
)

// MemoryStore implements Store in memory. It backs tests and the -memory
// development mode. Every conditional operation holds the store lock for the
// whole check-and-write, giving it the same atomicity as the SQL guards.
//
// BeginTx returns the store itself: individual operations are atomic but
// multi-statement groups are not rolled back. Good enough for the paths the
// engine exercises in tests; production runs on PostgresStore.
type MemoryStore struct {
	mu sync.Mutex

	subscriptionTypes map[uuid.UUID]*models.SubscriptionType
	campaigns         map[uuid.UUID]*models.Campaign
	companies         map[uuid.UUID]*models.Company
	roles             map[uuid.UUID]*models.Role
	users             map[uuid.UUID]*models.User
	vehicles          map[uuid.UUID]*models.Vehicle
	events            []*models.EventLog
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptionTypes: make(map[uuid.UUID]*models.SubscriptionType),
		campaigns:         make(map[uuid.UUID]*models.Campaign),
		companies:         make(map[uuid.UUID]*models.Company),
		roles:             make(map[uuid.UUID]*models.Role),
		users:             make(map[uuid.UUID]*models.User),
		vehicles:          make(map[uuid.UUID]*models.Vehicle),
	}
}

// BeginTx returns the store itself; see the type comment
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemoryStore) Rollback() error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func stamp(b *models.BaseModel) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
}

// ========== Subscription type methods ==========

func (s *MemoryStore) CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&st.BaseModel)
	if _, ok := s.subscriptionTypes[st.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *st
	s.subscriptionTypes[st.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSubscriptionType(ctx context.Context, id uuid.UUID) (*models.SubscriptionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.subscriptionTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) UpdateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptionTypes[st.ID]; !ok {
		return ErrNotFound
	}
	st.UpdatedAt = time.Now()
	cp := *st
	s.subscriptionTypes[st.ID] = &cp
	return nil
}

func (s *MemoryStore) ListSubscriptionTypes(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.SubscriptionType, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.SubscriptionType
	for _, st := range s.subscriptionTypes {
		if activeOnly && !st.IsActive {
			continue
		}
		cp := *st
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Campaign methods ==========

func (s *MemoryStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&c.BaseModel)
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if _, ok := s.campaigns[c.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.campaigns[c.ID]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	cp.CurrentSubscriptions = existing.CurrentSubscriptions
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *MemoryStore) ListCampaigns(ctx context.Context, limit, offset int) ([]*models.Campaign, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Campaign
	for _, c := range s.campaigns {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) IncrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return ErrLimitReached
	}
	if c.Status != models.CampaignStatusActive {
		return ErrLimitReached
	}
	if c.MaxSubscriptions != nil && c.CurrentSubscriptions >= *c.MaxSubscriptions {
		return ErrLimitReached
	}
	c.CurrentSubscriptions++
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DecrementCampaignEnrollment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok || c.CurrentSubscriptions == 0 {
		return ErrNotFound
	}
	c.CurrentSubscriptions--
	c.UpdatedAt = time.Now()
	return nil
}

// ========== Company methods ==========

func (s *MemoryStore) CreateCompany(ctx context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&c.BaseModel)
	if c.Status == "" {
		c.Status = models.CompanyStatusActive
	}
	c.Version = 1
	if _, ok := s.companies[c.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateCompany(ctx context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.companies[c.ID]
	if !ok {
		return ErrNotFound
	}
	existing.UpdatedAt = time.Now()
	existing.Name = c.Name
	existing.SubscriptionTypeID = c.SubscriptionTypeID
	existing.Status = c.Status
	return nil
}

func (s *MemoryStore) ListCompanies(ctx context.Context, limit, offset int) ([]*models.Company, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Company
	for _, c := range s.companies {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) ClaimCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return ErrNotFound
	}
	if c.CampaignID != nil {
		return ErrConflict
	}
	id := campaignID
	c.CampaignID = &id
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ClearCompanyCampaign(ctx context.Context, companyID, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok || c.CampaignID == nil || *c.CampaignID != campaignID {
		return ErrNotFound
	}
	c.CampaignID = nil
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) IncrementCompanyCounterIf(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta, limit int) error {
	if !kind.Valid() {
		return ErrInvalidData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return ErrLimitReached
	}
	if c.CounterFor(kind)+delta > limit {
		return ErrLimitReached
	}
	s.adjustCounter(c, kind, delta)
	return nil
}

func (s *MemoryStore) DecrementCompanyCounter(ctx context.Context, companyID uuid.UUID, kind models.ResourceKind, delta int) error {
	if !kind.Valid() {
		return ErrInvalidData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return ErrNotFound
	}
	if c.CounterFor(kind)-delta < 0 {
		delta = c.CounterFor(kind)
	}
	s.adjustCounter(c, kind, -delta)
	return nil
}

func (s *MemoryStore) adjustCounter(c *models.Company, kind models.ResourceKind, delta int) {
	switch kind {
	case models.ResourceVehicles:
		c.CurrentVehicles += delta
	case models.ResourceUsers:
		c.CurrentUsers += delta
	case models.ResourceGPSDevices:
		c.CurrentGPSDevices += delta
	case models.ResourceGeofences:
		c.CurrentGeofences += delta
	}
	c.UpdatedAt = time.Now()
}

// ========== Role methods ==========

func (s *MemoryStore) CreateRole(ctx context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&role.BaseModel)
	if _, ok := s.roles[role.ID]; ok {
		return ErrDuplicateKey
	}

	// The default flag only sticks when the company has no default yet,
	// checked under the same lock as the insert
	if role.IsDefault && role.CompanyID != nil {
		for _, existing := range s.roles {
			if existing.CompanyID != nil && *existing.CompanyID == *role.CompanyID && existing.IsDefault {
				role.IsDefault = false
				break
			}
		}
	}

	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *MemoryStore) UpdateRole(ctx context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.roles[role.ID]
	if !ok {
		return ErrNotFound
	}
	existing.UpdatedAt = time.Now()
	existing.Name = role.Name
	existing.Description = role.Description
	existing.Type = role.Type
	existing.Permissions = role.Permissions
	return nil
}

func (s *MemoryStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *MemoryStore) ListRoles(ctx context.Context, companyID *uuid.UUID) ([]*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var roles []*models.Role
	for _, role := range s.roles {
		if companyID == nil {
			if role.CompanyID != nil {
				continue
			}
		} else if role.CompanyID == nil || *role.CompanyID != *companyID {
			continue
		}
		cp := *role
		roles = append(roles, &cp)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.Before(roles[j].CreatedAt) })
	return roles, nil
}

func (s *MemoryStore) GetDefaultRole(ctx context.Context, companyID uuid.UUID) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, role := range s.roles {
		if role.CompanyID != nil && *role.CompanyID == companyID && role.IsDefault {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetSystemRoleByType(ctx context.Context, roleType models.RoleType) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, role := range s.roles {
		if role.CompanyID == nil && role.IsSystem && role.Type == roleType {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetDefaultRole(ctx context.Context, companyID, roleID uuid.UUID, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	company, ok := s.companies[companyID]
	if !ok {
		return ErrNotFound
	}
	if company.Version != expectedVersion {
		return ErrConflict
	}

	target, ok := s.roles[roleID]
	if !ok || target.CompanyID == nil || *target.CompanyID != companyID {
		return ErrNotFound
	}

	company.Version++
	company.UpdatedAt = time.Now()

	for _, role := range s.roles {
		if role.CompanyID != nil && *role.CompanyID == companyID && role.IsDefault {
			role.IsDefault = false
			role.UpdatedAt = time.Now()
		}
	}
	target.IsDefault = true
	target.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AdjustRoleUsersCount(ctx context.Context, roleID uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	role.UsersCount += delta
	if role.UsersCount < 0 {
		role.UsersCount = 0
	}
	role.UpdatedAt = time.Now()
	return nil
}

// ========== User methods ==========

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&user.BaseModel)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateKey
		}
	}
	cp := *user
	cp.AssignedVehicleIDs = append(models.UUIDList{}, user.AssignedVehicleIDs...)
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	cp.AssignedVehicleIDs = append(models.UUIDList{}, user.AssignedVehicleIDs...)
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			cp.AssignedVehicleIDs = append(models.UUIDList{}, user.AssignedVehicleIDs...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	cp.AssignedVehicleIDs = append(models.UUIDList{}, user.AssignedVehicleIDs...)
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.User
	for _, user := range s.users {
		if user.CompanyID != companyID {
			continue
		}
		cp := *user
		cp.AssignedVehicleIDs = append(models.UUIDList{}, user.AssignedVehicleIDs...)
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) PruneVehicleFromUsers(ctx context.Context, companyID, vehicleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.CompanyID != companyID {
			continue
		}
		var kept models.UUIDList
		for _, id := range user.AssignedVehicleIDs {
			if id != vehicleID {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(user.AssignedVehicleIDs) {
			user.AssignedVehicleIDs = kept
			user.UpdatedAt = time.Now()
		}
	}
	return nil
}

// ========== Vehicle methods ==========

func (s *MemoryStore) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&v.BaseModel)
	if v.Status == "" {
		v.Status = "active"
	}
	if _, ok := s.vehicles[v.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *v
	s.vehicles[v.ID] = &cp
	return nil
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[id]; !ok {
		return ErrNotFound
	}
	delete(s.vehicles, id)
	return nil
}

func (s *MemoryStore) ListVehicles(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*models.Vehicle, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Vehicle
	for _, v := range s.vehicles {
		if v.CompanyID != companyID {
			continue
		}
		cp := *v
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func (s *MemoryStore) ListVehicleIDs(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for _, v := range s.vehicles {
		if v.CompanyID == companyID {
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

// ========== Event log methods ==========

func (s *MemoryStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.EventLog
	for _, event := range s.events {
		if filters.CompanyID != nil && (event.CompanyID == nil || *event.CompanyID != *filters.CompanyID) {
			continue
		}
		if filters.CampaignID != nil && (event.CampaignID == nil || *event.CampaignID != *filters.CampaignID) {
			continue
		}
		if filters.Type != nil && event.Type != *filters.Type {
			continue
		}
		if filters.Level != nil && event.Level != *filters.Level {
			continue
		}
		if filters.StartTime != nil && event.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && event.CreatedAt.After(*filters.EndTime) {
			continue
		}
		cp := *event
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
