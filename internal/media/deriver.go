package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

// ThumbnailConfig bounds the size of derived thumbnails.
type ThumbnailConfig struct {
	MaxWidth  int
	MaxHeight int
}

// ThumbnailDeriver reacts to content objects being written or removed. It
// keeps the thumbnail and the content record in step with the original.
type ThumbnailDeriver struct {
	objects ObjectStore
	records RecordStore
	cfg     ThumbnailConfig
	logger  Logger
	clock   Clock
}

// NewThumbnailDeriver creates a deriver over the given stores.
func NewThumbnailDeriver(objects ObjectStore, records RecordStore, cfg ThumbnailConfig, logger Logger, clock Clock) *ThumbnailDeriver {
	return &ThumbnailDeriver{
		objects: objects,
		records: records,
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
	}
}

// Handle processes one object event. Expected skips return OutcomeSkipped
// and a nil error; every other failure is logged and returned so the caller
// can retry or dead-letter the event.
func (d *ThumbnailDeriver) Handle(ctx context.Context, ev ObjectEvent, params DeriveParams) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)

	switch ev.Kind {
	case ObjectRemoved:
		outcome, err = d.remove(ctx, ev)
	case ObjectCreated:
		outcome, err = d.derive(ctx, ev, params)
	default:
		err = fmt.Errorf("unknown object event kind %d for %s", ev.Kind, ev.Key)
	}

	if err != nil {
		d.logger.Error("object event failed",
			"kind", ev.Kind.String(),
			"key", ev.Key,
			"permanent", IsPermanent(err),
			"error", err)
		return OutcomeSkipped, err
	}

	d.logger.Info("object event handled", "kind", ev.Kind.String(), "key", ev.Key, "outcome", outcome.String())
	return outcome, nil
}

// remove deletes the thumbnail and the record of a removed object. Both
// deletes tolerate absence, so replaying the event is harmless.
func (d *ThumbnailDeriver) remove(ctx context.Context, ev ObjectEvent) (Outcome, error) {
	key, err := ParseObjectKey(ev.Key)
	if err != nil {
		return OutcomeSkipped, err
	}

	if err := d.objects.Delete(ctx, key.ThumbnailKey()); err != nil {
		return OutcomeSkipped, fmt.Errorf("deleting thumbnail %s: %w", key.ThumbnailKey(), err)
	}

	if err := d.records.DeleteRecord(ctx, key.OwnerID, ev.Key); err != nil {
		return OutcomeSkipped, fmt.Errorf("deleting record for %s: %w", ev.Key, err)
	}

	return OutcomeRemoved, nil
}

// derive renders and stores the thumbnail, then upserts the record.
func (d *ThumbnailDeriver) derive(ctx context.Context, ev ObjectEvent, params DeriveParams) (Outcome, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(ev.Key), "."))
	if !IsThumbnailable(ext) {
		d.logger.Info("skipping non-image object", "key", ev.Key, "extension", ext)
		return OutcomeSkipped, nil
	}

	key, err := ParseObjectKey(ev.Key)
	if err != nil {
		return OutcomeSkipped, err
	}

	src, err := d.objects.Get(ctx, ev.Key)
	if errors.Is(err, ErrObjectNotFound) {
		d.logger.Warn("source object no longer exists", "key", ev.Key)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("fetching %s: %w", ev.Key, err)
	}
	if src.Metadata == nil {
		return OutcomeSkipped, fmt.Errorf("%w: %s", ErrMissingMetadata, ev.Key)
	}

	thumb, err := RenderThumbnail(src.Body, ext, d.cfg.MaxWidth, d.cfg.MaxHeight)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("rendering thumbnail for %s: %w", ev.Key, err)
	}

	contentType := src.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension("." + ext)
	}

	err = d.objects.Put(ctx, &Object{
		Key:         key.ThumbnailKey(),
		Body:        thumb.Data,
		ContentType: contentType,
		Metadata:    map[string]string{},
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("writing thumbnail %s: %w", key.ThumbnailKey(), err)
	}
	d.logger.Debug("thumbnail written", "key", key.ThumbnailKey(), "width", thumb.Width, "height", thumb.Height)

	rec := d.buildRecord(key, ev, params, src.Metadata)
	if err := d.records.PutRecord(ctx, rec); err != nil {
		return OutcomeSkipped, fmt.Errorf("writing record for %s: %w", ev.Key, err)
	}

	return OutcomeDerived, nil
}

// buildRecord assembles the record for a derived object. Out-of-band params
// win over object metadata; visibility falls back to the key's scope.
func (d *ThumbnailDeriver) buildRecord(key ObjectKey, ev ObjectEvent, params DeriveParams, metadata map[string]string) *ContentRecord {
	uploaded := ev.Time
	if uploaded.IsZero() {
		uploaded = d.clock.Now()
	}

	isPublic := key.IsPublic()
	if params.IsPublic != nil {
		isPublic = *params.IsPublic
	}

	title := params.Title
	if title == "" {
		title = metadata["title"]
	}
	description := params.Description
	if description == "" {
		description = metadata["description"]
	}

	return &ContentRecord{
		OwnerID:      key.OwnerID,
		ObjectKey:    key.String(),
		ThumbnailKey: key.ThumbnailKey(),
		IsPublic:     isPublic,
		Uploaded:     NewUploadStamp(uploaded),
		Title:        title,
		Description:  description,
	}
}
