package domain

import "time"

// MembershipRole is the role a user holds inside an organization.
type MembershipRole string

const (
	RoleAdmin     MembershipRole = "ADMIN"
	RoleOrganizer MembershipRole = "ORGANIZER"
	RoleMember    MembershipRole = "MEMBER"
)

// MembershipStatus gates tenant access; only ACTIVE memberships grant it.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "ACTIVE"
	MembershipInactive MembershipStatus = "INACTIVE"
)

// Membership is the (user, organization) edge carrying role and status.
type Membership struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	OrganizationID string           `json:"organizationId"`
	Role           MembershipRole   `json:"role"`
	Status         MembershipStatus `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}
