package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"mediapipe/internal/config"
	"mediapipe/internal/encryption"
	"mediapipe/internal/media"
	"mediapipe/internal/objectstore"
	"mediapipe/internal/recordstore"
)

const (
	// FollowerName is the checkpoint name of the local change-log consumer.
	FollowerName = "indexer"
	// ChangeBatchSize bounds how many logged changes form one batch.
	ChangeBatchSize = 100
)

// App is the application layer between the CLI or Lambda runtime and the
// pipeline services. It constructs all dependencies from config and tags
// each handled request with an Invocation for log correlation.
type App struct {
	cfg     *config.Config
	objects media.ObjectStore
	records media.RecordStore
	handler *invocationHandler
	logFile *os.File
	clock   media.Clock
	ids     media.IDGenerator
}

// NewApp creates a fully wired App from the given config. passphrase is only
// called when the encryption config needs the private key.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, passphrase encryption.PassphraseFunc) (*App, error) {
	sealer, err := encryption.NewSealerFromConfig(cfg.Encryption, passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	objects, err := objectstore.NewObjectStoreFromConfig(ctx, cfg.ObjectStore, sealer)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	records, err := recordstore.NewRecordStoreFromConfig(ctx, cfg.RecordStore)
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	if m, ok := records.(recordstore.Migrator); ok {
		if err := m.CheckMigrations(); err != nil {
			records.Close()
			return nil, fmt.Errorf("record store schema out of date: %w", err)
		}
	}

	handler, logFile, err := newLogHandler(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := newApp(cfg, objects, records, handler, media.RealClock{}, media.UUIDGenerator{})
	a.logFile = logFile
	return a, nil
}

func newApp(cfg *config.Config, objects media.ObjectStore, records media.RecordStore, handler *invocationHandler, clock media.Clock, ids media.IDGenerator) *App {
	return &App{
		cfg:     cfg,
		objects: objects,
		records: records,
		handler: handler,
		clock:   clock,
		ids:     ids,
	}
}

// Migrate applies the record store's schema migrations. Stores without a
// local schema (DynamoDB) report an error.
func Migrate(ctx context.Context, cfg *config.Config) error {
	records, err := recordstore.NewRecordStoreFromConfig(ctx, cfg.RecordStore)
	if err != nil {
		return fmt.Errorf("creating record store: %w", err)
	}
	defer records.Close()

	m, ok := records.(recordstore.Migrator)
	if !ok {
		return fmt.Errorf("record store type %q has no local schema to migrate", cfg.RecordStore.Type)
	}
	return m.Migrate()
}

// begin starts an invocation. Inside Lambda the AWS request ID is used so
// log lines match the platform's; otherwise a fresh ID is generated.
func (a *App) begin(ctx context.Context, operation string) *Invocation {
	id := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		id = lc.AwsRequestID
	}
	if id == "" {
		id = a.ids.New()
	}

	inv := NewInvocation(id, operation, a.clock.Now())
	inv.logger = slog.New(a.handler.withInvocation(id))
	inv.logger.Debug("invocation started", "operation", operation)
	return inv
}

func (a *App) end(inv *Invocation, err error) {
	inv.Finish(err, a.clock.Now())
	inv.logger.Info("invocation finished",
		"operation", inv.Operation,
		"status", inv.Status,
		"duration", inv.Duration().Truncate(time.Millisecond))
}

func (a *App) deriver(inv *Invocation) *media.ThumbnailDeriver {
	cfg := media.ThumbnailConfig{
		MaxWidth:  a.cfg.Thumbnail.MaxWidth,
		MaxHeight: a.cfg.Thumbnail.MaxHeight,
	}
	return media.NewThumbnailDeriver(a.objects, a.records, cfg, &slogAdapter{l: inv.logger}, a.clock)
}

func (a *App) materializer(inv *Invocation) *media.IndexMaterializer {
	cfg := media.IndexConfig{
		PublicLimit: a.cfg.Index.PublicLimit,
		Concurrency: a.cfg.Index.Concurrency,
	}
	return media.NewIndexMaterializer(a.records, a.objects, cfg, &slogAdapter{l: inv.logger})
}

// UploadRequest describes a local file to publish as content.
type UploadRequest struct {
	OwnerID     string
	Private     bool
	Title       string
	Description string
}

// Upload writes a local file at its content key and derives it, standing in
// for the S3 notification. It returns the content key and the outcome.
func (a *App) Upload(ctx context.Context, path string, req UploadRequest) (key string, outcome media.Outcome, err error) {
	inv := a.begin(ctx, "Upload")
	defer func() { a.end(inv, err) }()

	if req.OwnerID == "" {
		return "", media.OutcomeSkipped, fmt.Errorf("owner is required")
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return "", media.OutcomeSkipped, fmt.Errorf("reading %s: %w", path, err)
	}

	vis := media.Public
	if req.Private {
		vis = media.Private
	}
	k := media.NewObjectKey(vis, req.OwnerID, filepath.Base(path))
	parsed, err := media.ParseObjectKey(k.String())
	if err != nil {
		return "", media.OutcomeSkipped, err
	}
	if parsed.OwnerID != req.OwnerID {
		return "", media.OutcomeSkipped, fmt.Errorf("%w: owner %q contains a separator", media.ErrMalformedKey, req.OwnerID)
	}
	key = k.String()

	err = a.objects.Put(ctx, &media.Object{
		Key:         key,
		Body:        body,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Metadata: map[string]string{
			"title":       req.Title,
			"description": req.Description,
		},
	})
	if err != nil {
		return key, media.OutcomeSkipped, fmt.Errorf("uploading %s: %w", key, err)
	}
	inv.logger.Info("object uploaded", "key", key, "size", len(body))

	isPublic := !req.Private
	ev := media.ObjectEvent{Kind: media.ObjectCreated, Key: key, Time: a.clock.Now()}
	params := media.DeriveParams{Title: req.Title, Description: req.Description, IsPublic: &isPublic}

	outcome, err = a.deriver(inv).Handle(ctx, ev, params)
	return key, outcome, err
}

// HandleS3Event derives every record of an object-store notification. All
// records are attempted; their errors are joined.
func (a *App) HandleS3Event(ctx context.Context, payload DeriverPayload) (outcomes []media.Outcome, err error) {
	inv := a.begin(ctx, "Derive")
	defer func() { a.end(inv, err) }()

	evs, err := payload.ObjectEvents()
	if err != nil {
		return nil, err
	}

	d := a.deriver(inv)
	params := payload.Params()

	var errs []error
	for _, ev := range evs {
		outcome, err := d.Handle(ctx, ev, params)
		if err != nil {
			errs = append(errs, err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, errors.Join(errs...)
}

// Remove deletes a content object and derives the removal.
func (a *App) Remove(ctx context.Context, key string) (outcome media.Outcome, err error) {
	inv := a.begin(ctx, "Remove")
	defer func() { a.end(inv, err) }()

	if _, err := media.ParseObjectKey(key); err != nil {
		return media.OutcomeSkipped, err
	}

	if err := a.objects.Delete(ctx, key); err != nil {
		return media.OutcomeSkipped, fmt.Errorf("deleting %s: %w", key, err)
	}

	ev := media.ObjectEvent{Kind: media.ObjectRemoved, Key: key, Time: a.clock.Now()}
	return a.deriver(inv).Handle(ctx, ev, media.DeriveParams{})
}

// HandleStreamEvent reindexes the scopes touched by a DynamoDB Streams batch.
func (a *App) HandleStreamEvent(ctx context.Context, ev events.DynamoDBEvent) (err error) {
	inv := a.begin(ctx, "Index")
	defer func() { a.end(inv, err) }()

	return a.materializer(inv).HandleBatch(ctx, ChangeEventsFromStream(ev))
}

func (a *App) changeFeed() (media.ChangeFeed, error) {
	feed, ok := a.records.(media.ChangeFeed)
	if !ok {
		return nil, fmt.Errorf("record store type %q has no change log; changes arrive on its stream", a.cfg.RecordStore.Type)
	}
	return feed, nil
}

// SyncChanges feeds every change logged since the last checkpoint to the
// materializer and returns how many were processed.
func (a *App) SyncChanges(ctx context.Context) (n int, err error) {
	inv := a.begin(ctx, "Sync")
	defer func() { a.end(inv, err) }()

	feed, err := a.changeFeed()
	if err != nil {
		return 0, err
	}
	return a.syncChanges(ctx, feed, a.materializer(inv))
}

// syncChanges drains the change log in batches. The checkpoint only moves
// after a batch is fully reindexed, so a failed batch is read again next time.
func (a *App) syncChanges(ctx context.Context, feed media.ChangeFeed, m *media.IndexMaterializer) (int, error) {
	pos, err := feed.Checkpoint(ctx, FollowerName)
	if err != nil {
		return 0, err
	}

	processed := 0
	for {
		changes, last, err := feed.ReadChanges(ctx, pos, ChangeBatchSize)
		if err != nil {
			return processed, err
		}
		if len(changes) == 0 {
			return processed, nil
		}

		if err := m.HandleBatch(ctx, changes); err != nil {
			return processed, fmt.Errorf("reindexing changes after %d: %w", pos, err)
		}
		if err := feed.Commit(ctx, FollowerName, last); err != nil {
			return processed, err
		}

		processed += len(changes)
		pos = last
	}
}

// FollowChanges syncs the change log every interval until ctx is cancelled.
// Failed batches are logged and retried on the next tick.
func (a *App) FollowChanges(ctx context.Context, interval time.Duration) (err error) {
	inv := a.begin(ctx, "Follow")
	defer func() { a.end(inv, err) }()

	feed, err := a.changeFeed()
	if err != nil {
		return err
	}
	m := a.materializer(inv)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := a.syncChanges(ctx, feed, m)
		if err != nil && ctx.Err() == nil {
			inv.logger.Error("change sync failed", "processed", n, "error", err)
		} else if n > 0 {
			inv.logger.Info("changes synced", "processed", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Reindex rebuilds every index document from the record store.
func (a *App) Reindex(ctx context.Context) (err error) {
	inv := a.begin(ctx, "Reindex")
	defer func() { a.end(inv, err) }()

	return a.materializer(inv).RebuildAll(ctx)
}

// GetRecord returns one content record, or nil.
func (a *App) GetRecord(ctx context.Context, ownerID, objectKey string) (*media.ContentRecord, error) {
	return a.records.GetRecord(ctx, ownerID, objectKey)
}

// ListRecords returns an owner's records of the given visibility.
func (a *App) ListRecords(ctx context.Context, ownerID string, isPublic bool) ([]*media.ContentRecord, error) {
	return a.records.QueryByOwner(ctx, ownerID, isPublic)
}

// ValidateSetup checks that the object store is reachable.
func (a *App) ValidateSetup(ctx context.Context) error {
	return a.objects.ValidateSetup(ctx)
}

// Close releases the record store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.records.Close(); err != nil {
		firstErr = fmt.Errorf("closing record store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
