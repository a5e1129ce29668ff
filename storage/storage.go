package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pinky-api/domain"
)

// ErrTaskNotFound is returned when a microtask references a task id that does
// not resolve.
var ErrTaskNotFound = errors.New("task not found")

// OrganizationMismatchError is returned when a microtask's organization does
// not match the organization of its parent task.
type OrganizationMismatchError struct {
	TaskID         string
	TaskOrgID      string
	RequestedOrgID string
}

func (e OrganizationMismatchError) Error() string {
	return fmt.Sprintf("task %s belongs to organization %s, not %s", e.TaskID, e.TaskOrgID, e.RequestedOrgID)
}

// Store is the sole owner of all entity records. Lookups by id are map
// lookups; filtered listings scan in insertion order. A single mutex guards
// all five collections so read-then-write sequences (seeding) stay atomic
// under parallel request handling.
type Store struct {
	mu sync.RWMutex

	users         map[string]domain.User
	usersByEmail  map[string]string
	userOrder     []string
	organizations map[string]domain.Organization
	orgOrder      []string
	memberships   map[string]domain.Membership
	memberOrder   []string
	tasks         map[string]domain.Task
	taskOrder     []string
	microTasks    map[string]domain.MicroTask
	microOrder    []string
}

// New creates an empty Store.
func New() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.users = map[string]domain.User{}
	s.usersByEmail = map[string]string{}
	s.userOrder = nil
	s.organizations = map[string]domain.Organization{}
	s.orgOrder = nil
	s.memberships = map[string]domain.Membership{}
	s.memberOrder = nil
	s.tasks = map[string]domain.Task{}
	s.taskOrder = nil
	s.microTasks = map[string]domain.MicroTask{}
	s.microOrder = nil
}

func now() time.Time {
	return time.Now().UTC()
}

// CreateUser stores a new user. Duplicate emails are not rejected: the email
// index is last-write-wins and callers (login) are expected to check
// GetUserByEmail first.
func (s *Store) CreateUser(email, displayName string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(email, displayName)
}

func (s *Store) createUserLocked(email, displayName string) domain.User {
	ts := now()
	user := domain.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID
	s.userOrder = append(s.userOrder, user.ID)
	return user
}

// GetUserByEmail resolves a user through the email index.
func (s *Store) GetUserByEmail(email string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return domain.User{}, false
	}
	user, ok := s.users[id]
	return user, ok
}

// GetUserByID resolves a user by primary key.
func (s *Store) GetUserByID(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	return user, ok
}

// CreateOrganization stores a new organization.
func (s *Store) CreateOrganization(name string) domain.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createOrganizationLocked(name)
}

func (s *Store) createOrganizationLocked(name string) domain.Organization {
	ts := now()
	org := domain.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.organizations[org.ID] = org
	s.orgOrder = append(s.orgOrder, org.ID)
	return org
}

// GetOrganizationByID resolves an organization by primary key.
func (s *Store) GetOrganizationByID(id string) (domain.Organization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizations[id]
	return org, ok
}

// AddMembership creates an ACTIVE membership. It does not check for an
// existing (user, organization) pair; calling it twice produces duplicates.
func (s *Store) AddMembership(userID, organizationID string, role domain.MembershipRole) domain.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMembershipLocked(userID, organizationID, role)
}

func (s *Store) addMembershipLocked(userID, organizationID string, role domain.MembershipRole) domain.Membership {
	ts := now()
	m := domain.Membership{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		Status:         domain.MembershipActive,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	s.memberships[m.ID] = m
	s.memberOrder = append(s.memberOrder, m.ID)
	return m
}

// ListMembershipsForUser returns every membership of the user regardless of
// status, in insertion order.
func (s *Store) ListMembershipsForUser(userID string) []domain.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listMembershipsLocked(userID)
}

func (s *Store) listMembershipsLocked(userID string) []domain.Membership {
	out := []domain.Membership{}
	for _, id := range s.memberOrder {
		if m := s.memberships[id]; m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// FindMembership returns the first membership matching the pair in insertion
// order. If duplicates exist, which one resolves is an implementation detail.
func (s *Store) FindMembership(userID, organizationID string) (domain.Membership, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.memberOrder {
		m := s.memberships[id]
		if m.UserID == userID && m.OrganizationID == organizationID {
			return m, true
		}
	}
	return domain.Membership{}, false
}

// CreateTask stores a new task under the organization.
func (s *Store) CreateTask(organizationID, title, description string) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTaskLocked(organizationID, title, description)
}

func (s *Store) createTaskLocked(organizationID, title, description string) domain.Task {
	ts := now()
	task := domain.Task{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Title:          title,
		Description:    description,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	s.tasks[task.ID] = task
	s.taskOrder = append(s.taskOrder, task.ID)
	return task
}

// GetTaskByID resolves a task by primary key.
func (s *Store) GetTaskByID(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// CreateMicroTaskParams carries the caller-supplied fields for a new
// microtask. Status defaults to OPEN, DueAt to nil.
type CreateMicroTaskParams struct {
	OrganizationID string
	TaskID         string
	Title          string
	Description    string
	Status         domain.MicroTaskStatus
	AssignedUserID string
	DueAt          *time.Time
}

// CreateMicroTask stores a new microtask after checking that its task exists
// and lives in the supplied organization. Integrity failures propagate to the
// caller unchanged.
func (s *Store) CreateMicroTask(p CreateMicroTaskParams) (domain.MicroTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMicroTaskLocked(p)
}

func (s *Store) createMicroTaskLocked(p CreateMicroTaskParams) (domain.MicroTask, error) {
	task, ok := s.tasks[p.TaskID]
	if !ok {
		return domain.MicroTask{}, ErrTaskNotFound
	}
	if task.OrganizationID != p.OrganizationID {
		return domain.MicroTask{}, OrganizationMismatchError{
			TaskID:         p.TaskID,
			TaskOrgID:      task.OrganizationID,
			RequestedOrgID: p.OrganizationID,
		}
	}
	status := p.Status
	if status == "" {
		status = domain.MicroTaskOpen
	}
	ts := now()
	mt := domain.MicroTask{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		TaskID:         p.TaskID,
		Title:          p.Title,
		Description:    p.Description,
		Status:         status,
		AssignedUserID: p.AssignedUserID,
		DueAt:          p.DueAt,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	s.microTasks[mt.ID] = mt
	s.microOrder = append(s.microOrder, mt.ID)
	return mt, nil
}

// ListMicroTasksForOrganization returns the organization's microtasks in
// insertion order, filtered by status when one is supplied.
func (s *Store) ListMicroTasksForOrganization(organizationID string, status domain.MicroTaskStatus) []domain.MicroTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.MicroTask{}
	for _, id := range s.microOrder {
		mt := s.microTasks[id]
		if mt.OrganizationID != organizationID {
			continue
		}
		if status != "" && mt.Status != status {
			continue
		}
		out = append(out, mt)
	}
	return out
}

// GetMicroTaskByID resolves a microtask by primary key.
func (s *Store) GetMicroTaskByID(id string) (domain.MicroTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mt, ok := s.microTasks[id]
	return mt, ok
}

// Reset clears all five collections.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// ExportAll serialises the full store state in insertion order.
func (s *Store) ExportAll() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.Snapshot{
		Users:         make([]domain.User, 0, len(s.userOrder)),
		Organizations: make([]domain.Organization, 0, len(s.orgOrder)),
		Memberships:   make([]domain.Membership, 0, len(s.memberOrder)),
		Tasks:         make([]domain.Task, 0, len(s.taskOrder)),
		MicroTasks:    make([]domain.MicroTask, 0, len(s.microOrder)),
	}
	for _, id := range s.userOrder {
		snap.Users = append(snap.Users, s.users[id])
	}
	for _, id := range s.orgOrder {
		snap.Organizations = append(snap.Organizations, s.organizations[id])
	}
	for _, id := range s.memberOrder {
		snap.Memberships = append(snap.Memberships, s.memberships[id])
	}
	for _, id := range s.taskOrder {
		snap.Tasks = append(snap.Tasks, s.tasks[id])
	}
	for _, id := range s.microOrder {
		snap.MicroTasks = append(snap.MicroTasks, s.microTasks[id])
	}
	return snap
}

// ImportAll resets the store and restores the snapshot as-is, preserving ids,
// timestamps and insertion order. Records are taken on faith; integrity
// checks apply only to writes made through the create operations.
func (s *Store) ImportAll(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	for _, u := range snap.Users {
		s.users[u.ID] = u
		s.usersByEmail[u.Email] = u.ID
		s.userOrder = append(s.userOrder, u.ID)
	}
	for _, o := range snap.Organizations {
		s.organizations[o.ID] = o
		s.orgOrder = append(s.orgOrder, o.ID)
	}
	for _, m := range snap.Memberships {
		s.memberships[m.ID] = m
		s.memberOrder = append(s.memberOrder, m.ID)
	}
	for _, t := range snap.Tasks {
		s.tasks[t.ID] = t
		s.taskOrder = append(s.taskOrder, t.ID)
	}
	for _, mt := range snap.MicroTasks {
		s.microTasks[mt.ID] = mt
		s.microOrder = append(s.microOrder, mt.ID)
	}
}
