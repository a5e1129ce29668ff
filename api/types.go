package api

import (
	"context"

	"pinky-api/domain"
)

// Directory is the slice of the store the authorization gate needs: identity
// and membership resolution.
type Directory interface {
	GetUserByID(id string) (domain.User, bool)
	FindMembership(userID, organizationID string) (domain.Membership, bool)
}

// Storage abstracts the entity store for the handlers. The listing takes a
// context because the caching implementation does Redis round trips; every
// other operation is pure in-memory computation.
type Storage interface {
	Directory
	GetUserByEmail(email string) (domain.User, bool)
	CreateUser(email, displayName string) domain.User
	SeedUserMemberships(user domain.User) []domain.Membership
	EnsureSeedMicroTasksForUser(userID string)
	ListMembershipsForUser(userID string) []domain.Membership
	GetOrganizationByID(id string) (domain.Organization, bool)
	GetTaskByID(id string) (domain.Task, bool)
	GetMicroTaskByID(id string) (domain.MicroTask, bool)
	ListMicroTasksForOrganization(ctx context.Context, organizationID string, status domain.MicroTaskStatus) []domain.MicroTask
}

// TokenService is implemented by types able to issue and verify access
// tokens.
type TokenService interface {
	Issue(userID string) (string, error)
	Verify(token string) (TokenPayload, error)
}
