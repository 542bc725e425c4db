package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// healthSyncer pushes a day's consumed energy to an external health store.
// sync replaces whatever sample the store already holds for that day.
type healthSyncer interface {
	prepare(ctx context.Context) error
	sync(ctx context.Context, userID int, s summary) error
}

// energySample is the body PUT to the health endpoint.
type energySample struct {
	Date  DateOnly  `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	KCal  float64   `json:"kcal"`
}

// httpHealthSyncer writes samples to {baseURL}/users/{id}/energy/{date}.
// PUT makes repeated syncs of the same day idempotent.
type httpHealthSyncer struct {
	baseURL string
	client  *http.Client
}

func newHTTPHealthSyncer(baseURL string) *httpHealthSyncer {
	return &httpHealthSyncer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpHealthSyncer) prepare(_ context.Context) error {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("parse health sync url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("health sync url must be http or https, got %q", u.Scheme)
	}
	return nil
}

func (s *httpHealthSyncer) sync(ctx context.Context, userID int, day summary) error {
	sample := energySample{
		Date:  day.Date,
		Start: day.Date.Time,
		End:   day.Date.Time.AddDate(0, 0, 1),
		KCal:  day.TotalCalories,
	}
	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%d/energy/%s", s.baseURL, userID, day.Date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("put sample: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("health store returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// syncTargetLister lists the users whose totals should be synced.
type syncTargetLister interface {
	syncTargets(ctx context.Context) ([]user, error)
}

// healthSyncJob syncs today's summary for every user with a profile.
type healthSyncJob struct {
	targets    syncTargetLister
	summaries  *summaryAggregator
	syncer     healthSyncer
	defaultLoc *time.Location
	now        func() time.Time
	log        *zap.Logger
}

func newHealthSyncJob(targets syncTargetLister, summaries *summaryAggregator, syncer healthSyncer, defaultLoc *time.Location, log *zap.Logger) *healthSyncJob {
	return &healthSyncJob{
		targets:    targets,
		summaries:  summaries,
		syncer:     syncer,
		defaultLoc: defaultLoc,
		now:        time.Now,
		log:        log.With(zap.String("component", "healthSync")),
	}
}

// run performs one sync pass and returns how many users synced. A failure
// for one user is logged and does not stop the others.
func (j *healthSyncJob) run(ctx context.Context) int {
	users, err := j.targets.syncTargets(ctx)
	if err != nil {
		j.log.Error("list sync targets", zap.Error(err))
		return 0
	}

	synced := 0
	for _, u := range users {
		loc := userLocation(u.Timezone, j.defaultLoc)
		day, err := j.summaries.fetchSummary(ctx, u.ID, j.now(), loc)
		if err != nil {
			j.log.Warn("fetch summary", zap.Int("user_id", u.ID), zap.Error(err))
			continue
		}
		if err := j.syncer.sync(ctx, u.ID, day); err != nil {
			j.log.Warn("sync failed", zap.Int("user_id", u.ID), zap.Error(err))
			continue
		}
		synced++
	}
	j.log.Info("health sync pass complete", zap.Int("synced", synced), zap.Int("users", len(users)))
	return synced
}

// start prepares the syncer and schedules run on spec. The returned cron is
// already running; call Stop on shutdown.
func (j *healthSyncJob) start(ctx context.Context, spec string) (*cron.Cron, error) {
	if err := j.syncer.prepare(ctx); err != nil {
		return nil, err
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { j.run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	j.log.Info("health sync scheduled", zap.String("schedule", spec))
	return c, nil
}

// userLocation loads an IANA timezone, falling back to def when empty or unknown.
func userLocation(name string, def *time.Location) *time.Location {
	if name == "" {
		return def
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return def
	}
	return loc
}
