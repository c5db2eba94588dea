// Package dashboard assembles the composite snapshot shown for a project.
//
// A snapshot combines three independent upstreams: the project's data
// endpoint (user counts, database size, recent signups), its privileged
// metrics endpoint, and the management analytics API. They are queried
// concurrently and each one falls back to zero values on its own, so a
// snapshot is always complete.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"supamon-backend/internal/management"
	"supamon-backend/internal/models"
	"supamon-backend/internal/postgrest"
	"supamon-backend/pkg/utils"
)

// HighUsagePercent marks a project as warning when any resource reaches it.
const HighUsagePercent = 90.0

// sourceOrder fixes the order of Snapshot.Failed.
var sourceOrder = []string{
	SourceTotalUsers, SourceActiveUsers, SourceDatabaseSize, SourceActivity, SourceMetrics, SourceAnalytics,
}

// Config tunes the upstream queries.
type Config struct {
	UsersTable       string
	ActivityLimit    int
	MetricsPrincipal string
	SourceTimeout    time.Duration
}

// Aggregator builds snapshots. It is safe for concurrent use.
type Aggregator struct {
	cfg        Config
	httpClient *http.Client
	management *management.Client
	metrics    *Metrics
	now        func() time.Time
}

// Option mutates aggregator configuration.
type Option func(*Aggregator)

// WithHTTPClient sets the client used for the data and metrics endpoints.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Aggregator) {
		if hc != nil {
			a.httpClient = hc
		}
	}
}

// WithManagementClient enables the analytics source.
func WithManagementClient(mc *management.Client) Option {
	return func(a *Aggregator) {
		a.management = mc
	}
}

// WithMetrics records fetch outcomes and latency.
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New constructs an Aggregator.
func New(cfg Config, opts ...Option) *Aggregator {
	if cfg.UsersTable == "" {
		cfg.UsersTable = "auth.users"
	}
	if cfg.ActivityLimit <= 0 || cfg.ActivityLimit > models.MaxActivityItems {
		cfg.ActivityLimit = models.MaxActivityItems
	}
	if cfg.MetricsPrincipal == "" {
		cfg.MetricsPrincipal = "service_role"
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 10 * time.Second
	}

	a := &Aggregator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SourceTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// failures collects failed source names from concurrent tasks.
type failures struct {
	mu     sync.Mutex
	failed map[string]bool
	tried  int
}

func (f *failures) record(source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tried++
	if err != nil {
		f.failed[source] = true
	}
}

func (f *failures) names() []string {
	var out []string
	for _, s := range sourceOrder {
		if f.failed[s] {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot fetches every source for project and never fails. Each field that
// could not be fetched holds its zero default and its source is listed in
// Failed. Cancelling ctx makes the outstanding sources fall back.
func (a *Aggregator) Snapshot(ctx context.Context, project models.Project) models.Snapshot {
	start := time.Now()
	if a.metrics != nil {
		defer func() { a.metrics.SnapshotDuration.Observe(time.Since(start).Seconds()) }()
	}

	var (
		stats    = models.DefaultProjectStats()
		usage    models.ResourceUsage
		activity = []models.ActivityItem{}
		track    = &failures{failed: map[string]bool{}}
	)

	var g errgroup.Group

	g.Go(func() error {
		a.primary(ctx, project, &stats, &activity, track)
		return nil
	})

	g.Go(func() error {
		err := a.run(ctx, project, SourceMetrics, func(ctx context.Context) error {
			u, err := a.resourceUsage(ctx, project)
			if err != nil {
				return err
			}
			usage = u.Clamp()
			return nil
		})
		track.record(SourceMetrics, err)
		return nil
	})

	var requests int64
	if a.management != nil && project.HasSecondaryToken() {
		g.Go(func() error {
			err := a.run(ctx, project, SourceAnalytics, func(ctx context.Context) error {
				n, err := a.apiRequests(ctx, project)
				if err != nil {
					return err
				}
				requests = n
				return nil
			})
			track.record(SourceAnalytics, err)
			return nil
		})
	}

	_ = g.Wait()
	stats.APIRequests = requests

	snap := models.Snapshot{
		ProjectID: project.ID,
		Stats:     stats,
		Usage:     usage,
		Activity:  activity,
		Failed:    track.names(),
		TakenAt:   a.now().UTC(),
	}
	snap.Status = deriveStatus(track.tried, len(snap.Failed), usage)
	return snap
}

// primary runs the data endpoint queries. They share a client but fall back
// independently.
func (a *Aggregator) primary(ctx context.Context, project models.Project, stats *models.ProjectStats, activity *[]models.ActivityItem, track *failures) {
	db, err := postgrest.NewClient(project.URL, project.Credential, postgrest.WithHTTPClient(a.httpClient))
	if err != nil {
		for _, s := range []string{SourceTotalUsers, SourceActiveUsers, SourceDatabaseSize, SourceActivity} {
			a.logFailure(project, s, err)
			a.metrics.observe(s, err)
			track.record(s, err)
		}
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		track.record(SourceTotalUsers, a.run(ctx, project, SourceTotalUsers, func(ctx context.Context) error {
			n, err := a.totalUsers(ctx, db)
			if err == nil {
				stats.TotalUsers = n
			}
			return err
		}))
		return nil
	})
	g.Go(func() error {
		track.record(SourceActiveUsers, a.run(ctx, project, SourceActiveUsers, func(ctx context.Context) error {
			n, err := a.activeUsers(ctx, db)
			if err == nil {
				stats.ActiveUsers = n
			}
			return err
		}))
		return nil
	})
	g.Go(func() error {
		track.record(SourceDatabaseSize, a.run(ctx, project, SourceDatabaseSize, func(ctx context.Context) error {
			size, err := a.databaseSize(ctx, db)
			if err == nil {
				stats.DatabaseSize = size
			}
			return err
		}))
		return nil
	})
	g.Go(func() error {
		track.record(SourceActivity, a.run(ctx, project, SourceActivity, func(ctx context.Context) error {
			items, err := a.recentActivity(ctx, db)
			if err == nil {
				*activity = items
			}
			return err
		}))
		return nil
	})
	_ = g.Wait()
}

// run executes one source under its own timeout, converting panics into
// failures.
func (a *Aggregator) run(ctx context.Context, project models.Project, source string, fetch func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			utils.CaptureSentryPanic("dashboard."+source, r)
			err = fmt.Errorf("panic in %s source: %v", source, r)
		}
		a.metrics.observe(source, err)
		if err != nil {
			a.logFailure(project, source, err)
		}
	}()

	return fetch(ctx)
}

func (a *Aggregator) logFailure(project models.Project, source string, err error) {
	logrus.WithFields(logrus.Fields{
		"source":      source,
		"project_id":  project.ID,
		"project_ref": project.ProjectRef,
		"error":       err.Error(),
	}).Warn("Upstream fetch failed, using defaults")
}

// deriveStatus is error when every attempted source failed, warning when some
// failed or a resource runs hot, and healthy otherwise.
func deriveStatus(attempted, failed int, usage models.ResourceUsage) models.ProjectStatus {
	switch {
	case attempted > 0 && failed >= attempted:
		return models.StatusError
	case failed > 0:
		return models.StatusWarning
	case usage.CPU >= HighUsagePercent || usage.Memory >= HighUsagePercent || usage.Disk >= HighUsagePercent:
		return models.StatusWarning
	}
	return models.StatusHealthy
}
