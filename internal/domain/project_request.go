package domain

import "time"

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusApproved   ProjectStatus = "approved"
	ProjectStatusRejected   ProjectStatus = "rejected"
	ProjectStatusInProgress ProjectStatus = "in-progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// ProjectStatuses lists every status in the order the admin screen offers them.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusPending,
	ProjectStatusApproved,
	ProjectStatusRejected,
	ProjectStatusInProgress,
	ProjectStatusCompleted,
}

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether the request counts as accepted work.
func (s ProjectStatus) Active() bool {
	return s == ProjectStatusApproved || s == ProjectStatusInProgress || s == ProjectStatusCompleted
}

// ProjectRequest is a lead submitted by a signed-in user.
type ProjectRequest struct {
	ID          string
	UserID      string
	Name        string
	Email       string
	Title       string
	Description string
	Budget      *float64
	Status      ProjectStatus
	CreatedAt   time.Time
}

// ProjectRequestStats summarises requests for the admin dashboard.
type ProjectRequestStats struct {
	Pending  int
	Active   int
	Rejected int
}

// SummariseProjectRequests counts pending, active and rejected requests.
func SummariseProjectRequests(requests []ProjectRequest) ProjectRequestStats {
	var stats ProjectRequestStats
	for _, r := range requests {
		switch {
		case r.Status == ProjectStatusPending:
			stats.Pending++
		case r.Status == ProjectStatusRejected:
			stats.Rejected++
		case r.Status.Active():
			stats.Active++
		}
	}
	return stats
}
