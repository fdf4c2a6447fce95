package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPublicLimit caps the public index.
	DefaultPublicLimit = 100
	// DefaultConcurrency bounds parallel private reindexes.
	DefaultConcurrency = 8
)

// IndexConfig tunes index materialization.
type IndexConfig struct {
	PublicLimit int
	Concurrency int
}

// ReindexPlan is the set of scopes a batch of changes touches.
type ReindexPlan struct {
	PublicDays map[string]struct{}
	Owners     map[string]struct{}
}

// PlanReindex triages a batch without any I/O. Public images with an upload
// day mark that day; every other change marks its owner.
func PlanReindex(batch []ChangeEvent) ReindexPlan {
	plan := ReindexPlan{
		PublicDays: make(map[string]struct{}),
		Owners:     make(map[string]struct{}),
	}

	for _, ev := range batch {
		if day, ok := publicDay(ev); ok {
			plan.PublicDays[day] = struct{}{}
			continue
		}
		if ev.OwnerID == "" {
			continue
		}
		plan.Owners[ev.OwnerID] = struct{}{}
	}

	return plan
}

func publicDay(ev ChangeEvent) (string, bool) {
	if ev.NewImage == nil || !ev.NewImage.IsPublic || ev.NewImage.UploadDay == "" {
		return "", false
	}
	return ev.NewImage.UploadDay, true
}

// LatestPublicDay returns the greatest public day in the plan. ISO dates
// sort lexicographically, so the last one is the most recent.
func (p ReindexPlan) LatestPublicDay() (string, bool) {
	latest := ""
	for day := range p.PublicDays {
		if day > latest {
			latest = day
		}
	}
	return latest, latest != ""
}

// OwnerIDs returns the owners in the plan in sorted order.
func (p ReindexPlan) OwnerIDs() []string {
	ids := make([]string, 0, len(p.Owners))
	for id := range p.Owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IndexMaterializer rebuilds index documents from the record store.
type IndexMaterializer struct {
	records RecordStore
	objects ObjectStore
	cfg     IndexConfig
	logger  Logger
}

// NewIndexMaterializer creates a materializer. Zero config values fall back
// to the defaults.
func NewIndexMaterializer(records RecordStore, objects ObjectStore, cfg IndexConfig, logger Logger) *IndexMaterializer {
	if cfg.PublicLimit <= 0 {
		cfg.PublicLimit = DefaultPublicLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &IndexMaterializer{
		records: records,
		objects: objects,
		cfg:     cfg,
		logger:  logger,
	}
}

// HandleBatch reindexes every scope touched by a batch of changes. Only the
// most recent public day is rebuilt; every touched owner is rebuilt in
// parallel. Failures from both scopes are joined and returned.
func (m *IndexMaterializer) HandleBatch(ctx context.Context, batch []ChangeEvent) error {
	plan := PlanReindex(batch)

	for _, ev := range batch {
		if _, ok := publicDay(ev); !ok && ev.OwnerID == "" {
			m.logger.Warn("change without owner ignored", "id", ev.ID, "kind", string(ev.Kind))
		}
	}

	var errs []error

	if day, ok := plan.LatestPublicDay(); ok {
		if len(plan.PublicDays) > 1 {
			m.logger.Debug("older public days coalesced", "day", day, "days", len(plan.PublicDays))
		}
		if err := m.RebuildPublic(ctx, day); err != nil {
			errs = append(errs, err)
		}
	}

	if err := m.rebuildOwners(ctx, plan.OwnerIDs()); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("reindex failed", "changes", len(batch), "error", err)
		return err
	}

	m.logger.Info("batch reindexed", "changes", len(batch), "owners", len(plan.Owners), "public_days", len(plan.PublicDays))
	return nil
}

// RebuildPublic overwrites the public index with the newest public uploads
// of day.
func (m *IndexMaterializer) RebuildPublic(ctx context.Context, day string) error {
	recs, err := m.records.QueryByDay(ctx, day, true, m.cfg.PublicLimit)
	if err != nil {
		return fmt.Errorf("querying public content for %s: %w", day, err)
	}
	if err := m.writeIndex(ctx, PublicIndexKey(), recs); err != nil {
		return err
	}
	m.logger.Info("public index rebuilt", "day", day, "entries", len(recs))
	return nil
}

// RebuildPrivate overwrites an owner's private index.
func (m *IndexMaterializer) RebuildPrivate(ctx context.Context, ownerID string) error {
	recs, err := m.records.QueryByOwner(ctx, ownerID, false)
	if err != nil {
		return fmt.Errorf("querying private content for %s: %w", ownerID, err)
	}
	if err := m.writeIndex(ctx, PrivateIndexKey(ownerID), recs); err != nil {
		return err
	}
	m.logger.Info("private index rebuilt", "owner", ownerID, "entries", len(recs))
	return nil
}

// RebuildAll recomputes every index document from the record store.
func (m *IndexMaterializer) RebuildAll(ctx context.Context) error {
	var errs []error

	day, err := m.records.LatestUploadDay(ctx, true)
	if err != nil {
		errs = append(errs, fmt.Errorf("finding latest public day: %w", err))
	} else if day != "" {
		if err := m.RebuildPublic(ctx, day); err != nil {
			errs = append(errs, err)
		}
	} else {
		if err := m.writeIndex(ctx, PublicIndexKey(), nil); err != nil {
			errs = append(errs, err)
		}
	}

	owners, err := m.records.ListOwners(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing owners: %w", err))
	} else if err := m.rebuildOwners(ctx, owners); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// rebuildOwners rebuilds private indexes concurrently and waits for all of
// them. The first failure is returned.
func (m *IndexMaterializer) rebuildOwners(ctx context.Context, owners []string) error {
	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)

	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			return m.RebuildPrivate(ctx, owner)
		})
	}

	return g.Wait()
}

func (m *IndexMaterializer) writeIndex(ctx context.Context, key string, recs []*ContentRecord) error {
	summaries := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, rec.Summarize())
	}

	body, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("encoding index %s: %w", key, err)
	}

	err = m.objects.Put(ctx, &Object{
		Key:         key,
		Body:        body,
		ContentType: "application/json",
		Metadata:    map[string]string{},
	})
	if err != nil {
		return fmt.Errorf("writing index %s: %w", key, err)
	}
	return nil
}
