package models

import (
	"strings"
	"time"
)

// ProjectStatus is the coarse health of a registered project.
type ProjectStatus string

const (
	StatusHealthy ProjectStatus = "healthy"
	StatusWarning ProjectStatus = "warning"
	StatusError   ProjectStatus = "error"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusError:
		return true
	}
	return false
}

// Project is a registered backend project. Credential and SecondaryToken are
// secrets and only ever leave the process towards the project's own hosts.
type Project struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ProjectRef     string        `json:"projectRef"`
	URL            string        `json:"url"`
	Credential     string        `json:"credential"`
	SecondaryToken string        `json:"secondaryToken,omitempty"`
	Status         ProjectStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// RecordID implements repository.Record.
func (p Project) RecordID() string { return p.ID }

// HasSecondaryToken reports whether management API access is configured.
func (p Project) HasSecondaryToken() bool {
	return strings.TrimSpace(p.SecondaryToken) != ""
}

// ProjectStats are user and request counters for the dashboard.
type ProjectStats struct {
	TotalUsers       int64   `json:"totalUsers"`
	ActiveUsers      int64   `json:"activeUsers"`
	APIRequests      int64   `json:"apiRequests"`
	DatabaseSize     string  `json:"databaseSize"`
	UsersTrend       float64 `json:"usersTrend"`
	ActiveUsersTrend float64 `json:"activeUsersTrend"`
	RequestsTrend    float64 `json:"requestsTrend"`
}

// DefaultDatabaseSize is reported when the size query fails.
const DefaultDatabaseSize = "0 MB"

// DefaultProjectStats returns the zero-valued stats used when the primary source fails.
func DefaultProjectStats() ProjectStats {
	return ProjectStats{DatabaseSize: DefaultDatabaseSize}
}

// ResourceUsage holds utilization percentages in [0,100].
type ResourceUsage struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
}

// Clamp bounds every field to [0,100].
func (u ResourceUsage) Clamp() ResourceUsage {
	return ResourceUsage{CPU: clampPercent(u.CPU), Memory: clampPercent(u.Memory), Disk: clampPercent(u.Disk)}
}

func clampPercent(v float64) float64 {
	if v != v || v < 0 { // NaN
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// MaxActivityItems bounds the recent-activity listing.
const MaxActivityItems = 10

// ActivityType classifies dashboard activity entries.
type ActivityType string

const (
	ActivityUserSignup    ActivityType = "user_signup"
	ActivityAPIRequest    ActivityType = "api_request"
	ActivityDatabaseQuery ActivityType = "database_query"
	ActivityAlert         ActivityType = "alert"
)

// Severity of an activity entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ActivityItem is one entry in the recent-activity feed.
type ActivityItem struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
	Timestamp string       `json:"timestamp"`
	Severity  Severity     `json:"severity,omitempty"`
}

// Snapshot is the composite dashboard view of a project.
type Snapshot struct {
	ProjectID string         `json:"projectId"`
	Stats     ProjectStats   `json:"stats"`
	Usage     ResourceUsage  `json:"usage"`
	Activity  []ActivityItem `json:"activity"`
	Status    ProjectStatus  `json:"status"`
	Failed    []string       `json:"failedSources,omitempty"`
	TakenAt   time.Time      `json:"takenAt"`
}

// ProjectView is the API representation of a project with secrets masked.
type ProjectView struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	ProjectRef        string        `json:"projectRef"`
	URL               string        `json:"url"`
	CredentialHint    string        `json:"credentialHint"`
	HasSecondaryToken bool          `json:"hasSecondaryToken"`
	Status            ProjectStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// View strips secrets from the project.
func (p Project) View() ProjectView {
	return ProjectView{
		ID:                p.ID,
		Name:              p.Name,
		ProjectRef:        p.ProjectRef,
		URL:               p.URL,
		CredentialHint:    MaskSecret(p.Credential),
		HasSecondaryToken: p.HasSecondaryToken(),
		Status:            p.Status,
		CreatedAt:         p.CreatedAt,
	}
}

// MaskSecret keeps at most the last four characters of long secrets.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return "****" + secret[len(secret)-4:]
}
