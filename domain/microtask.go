package domain

import "time"

// MicroTaskStatus is the workflow state of a microtask.
type MicroTaskStatus string

const (
	MicroTaskOpen     MicroTaskStatus = "OPEN"
	MicroTaskAssigned MicroTaskStatus = "ASSIGNED"
	MicroTaskDone     MicroTaskStatus = "DONE"
)

// ValidMicroTaskStatus reports whether s is one of the known workflow states.
func ValidMicroTaskStatus(s MicroTaskStatus) bool {
	switch s {
	case MicroTaskOpen, MicroTaskAssigned, MicroTaskDone:
		return true
	}
	return false
}

// MicroTask is the leaf work item. It belongs to a task which must live in
// the same organization.
type MicroTask struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	TaskID         string          `json:"taskId"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Status         MicroTaskStatus `json:"status"`
	AssignedUserID string          `json:"assignedUserId,omitempty"`
	DueAt          *time.Time      `json:"dueAt"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
