package storage

import (
	"fmt"
	"time"

	"pinky-api/domain"
)

// SeedUserMemberships gives a first-time user a personal workspace and a demo
// workspace. Existing memberships are returned untouched. The check and the
// creates run under one lock acquisition so concurrent logins for the same
// user cannot double-seed.
func (s *Store) SeedUserMemberships(user domain.User) []domain.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.listMembershipsLocked(user.ID)
	if len(existing) > 0 {
		return existing
	}

	primary := s.createOrganizationLocked(fmt.Sprintf("Pinky Workspace (%s)", user.Email))
	secondary := s.createOrganizationLocked("Pinky Demo Workspace")

	return []domain.Membership{
		s.addMembershipLocked(user.ID, primary.ID, domain.RoleAdmin),
		s.addMembershipLocked(user.ID, secondary.ID, domain.RoleMember),
	}
}

// EnsureSeedMicroTasksForUser populates a starter task with a few microtasks
// in every organization the user belongs to that has none yet, so fresh
// workspaces are not empty. Idempotent per organization.
func (s *Store) EnsureSeedMicroTasksForUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.listMembershipsLocked(userID) {
		if s.orgHasMicroTasksLocked(m.OrganizationID) {
			continue
		}
		task := s.createTaskLocked(m.OrganizationID, "Getting started", "A few first steps in this workspace")
		due := now().Add(24 * time.Hour)
		seeds := []CreateMicroTaskParams{
			{OrganizationID: m.OrganizationID, TaskID: task.ID, Title: "Invite a teammate", DueAt: &due},
			{OrganizationID: m.OrganizationID, TaskID: task.ID, Title: "Create your first task"},
			{OrganizationID: m.OrganizationID, TaskID: task.ID, Title: "Explore the demo board"},
		}
		for _, p := range seeds {
			// Task was just created in the same organization, cannot fail.
			if _, err := s.createMicroTaskLocked(p); err != nil {
				panic(err)
			}
		}
	}
}

func (s *Store) orgHasMicroTasksLocked(organizationID string) bool {
	for _, id := range s.microOrder {
		if s.microTasks[id].OrganizationID == organizationID {
			return true
		}
	}
	return false
}

// BuildDefaultSeed resets the store and creates the deterministic dataset
// written out by the storage-init binary.
func (s *Store) BuildDefaultSeed() error {
	s.Reset()

	user := s.CreateUser("seed-user@pinky.dev", "Seed User")
	org := s.CreateOrganization("Pinky Seed Workspace")
	s.AddMembership(user.ID, org.ID, domain.RoleAdmin)

	task := s.CreateTask(org.ID, "Onboarding vorbereiten", "Checklist für neue Teammitglieder")

	dueSoon := now().Add(24 * time.Hour)
	dueLater := now().Add(48 * time.Hour)
	seeds := []CreateMicroTaskParams{
		{
			OrganizationID: org.ID,
			TaskID:         task.ID,
			Title:          "Willkommenspaket packen",
			Description:    "Laptop, Zubehör und Goodies vorbereiten",
			DueAt:          &dueSoon,
		},
		{
			OrganizationID: org.ID,
			TaskID:         task.ID,
			Title:          "Zugangsdaten anlegen",
			Description:    "Accounts für E-Mail und Tools erstellen",
			DueAt:          &dueLater,
		},
		{
			OrganizationID: org.ID,
			TaskID:         task.ID,
			Title:          "Erste Woche planen",
			Description:    "Meetings und Mentor festlegen",
		},
	}
	for _, p := range seeds {
		if _, err := s.CreateMicroTask(p); err != nil {
			return err
		}
	}
	return nil
}
