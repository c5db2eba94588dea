package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"supamon-backend/internal/exposition"
	"supamon-backend/internal/models"
	"supamon-backend/internal/postgrest"
)

// Source names used in logs, metrics and Snapshot.Failed.
const (
	SourceTotalUsers   = "total_users"
	SourceActiveUsers  = "active_users"
	SourceDatabaseSize = "database_size"
	SourceActivity     = "activity"
	SourceMetrics      = "metrics"
	SourceAnalytics    = "analytics"
)

const (
	metricsPath     = "/customer/v1/privileged/metrics"
	activeWindow    = 24 * time.Hour
	defaultDatabase = "postgres"
	maxScrapeBytes  = 16 << 20
)

type signupRow struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	CreatedAt string  `json:"created_at"`
}

func (a *Aggregator) totalUsers(ctx context.Context, db *postgrest.Client) (int64, error) {
	return db.Count(ctx, a.cfg.UsersTable)
}

func (a *Aggregator) activeUsers(ctx context.Context, db *postgrest.Client) (int64, error) {
	since := a.now().Add(-activeWindow).UTC().Format(time.RFC3339)
	return db.Count(ctx, a.cfg.UsersTable, postgrest.Gte("last_sign_in_at", since))
}

func (a *Aggregator) databaseSize(ctx context.Context, db *postgrest.Client) (string, error) {
	var bytes float64
	if err := db.RPC(ctx, "pg_database_size", map[string]string{"name": defaultDatabase}, &bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%.1f MB", bytes/1024/1024), nil
}

func (a *Aggregator) recentActivity(ctx context.Context, db *postgrest.Client) ([]models.ActivityItem, error) {
	var rows []signupRow
	err := db.Select(ctx, a.cfg.UsersTable, postgrest.Query{
		Columns: "id,email,created_at",
		Order:   "created_at.desc",
		Limit:   a.cfg.ActivityLimit,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return signupActivity(rows, a.cfg.ActivityLimit), nil
}

// signupActivity maps recent users, newest first, to activity entries.
func signupActivity(rows []signupRow, limit int) []models.ActivityItem {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]models.ActivityItem, 0, len(rows))
	for i, row := range rows {
		who := "Anonymous"
		if row.Email != nil && *row.Email != "" {
			who = *row.Email
		}
		items = append(items, models.ActivityItem{
			ID:        row.ID + "-" + strconv.Itoa(i),
			Type:      models.ActivityUserSignup,
			Message:   "New user signed up: " + who,
			Timestamp: row.CreatedAt,
			Severity:  models.SeverityInfo,
		})
	}
	return items
}

// resourceUsage scrapes the project's privileged metrics endpoint.
func (a *Aggregator) resourceUsage(ctx context.Context, project models.Project) (models.ResourceUsage, error) {
	base, err := url.Parse(project.URL)
	if err != nil {
		return models.ResourceUsage{}, fmt.Errorf("parse project url: %w", err)
	}
	target := url.URL{Scheme: base.Scheme, Host: base.Host, Path: metricsPath}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return models.ResourceUsage{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(a.cfg.MetricsPrincipal, project.Credential)
	req.Header.Set("Accept", "text/plain")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return models.ResourceUsage{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ResourceUsage{}, fmt.Errorf("metrics endpoint returned %d", resp.StatusCode)
	}
	return exposition.Parse(io.LimitReader(resp.Body, maxScrapeBytes))
}

func (a *Aggregator) apiRequests(ctx context.Context, project models.Project) (int64, error) {
	return a.management.APIRequestCount(ctx, project.ProjectRef, project.SecondaryToken)
}
