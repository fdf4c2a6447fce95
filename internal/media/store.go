package media

import "context"

// Object is a stored blob with its declared content type and custom metadata.
// A nil Metadata map means the object carried no metadata at all.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// ObjectStore holds originals, thumbnails and index documents.
type ObjectStore interface {
	// Get returns the object at key, or ErrObjectNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes obj, replacing anything stored at obj.Key.
	Put(ctx context.Context, obj *Object) error

	// Delete removes the object at key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies the store is reachable and usable.
	ValidateSetup(ctx context.Context) error
}

// RecordStore is the authoritative table of content records, keyed by
// (ownerID, objectKey) with a secondary ordering by upload day.
type RecordStore interface {
	// PutRecord inserts or replaces a record.
	PutRecord(ctx context.Context, rec *ContentRecord) error

	// GetRecord returns the record for the key, or nil if there is none.
	GetRecord(ctx context.Context, ownerID, objectKey string) (*ContentRecord, error)

	// DeleteRecord removes a record. Deleting an absent record succeeds.
	DeleteRecord(ctx context.Context, ownerID, objectKey string) error

	// QueryByOwner returns every record of the owner with the given
	// visibility, ordered by object key descending.
	QueryByOwner(ctx context.Context, ownerID string, isPublic bool) ([]*ContentRecord, error)

	// QueryByDay returns up to limit records uploaded on day with the given
	// visibility, newest upload first. The limit counts matching records.
	QueryByDay(ctx context.Context, day string, isPublic bool, limit int) ([]*ContentRecord, error)

	// ListOwners returns every owner that has at least one record.
	ListOwners(ctx context.Context) ([]string, error)

	// LatestUploadDay returns the most recent upload day among records with
	// the given visibility, or "" when there are none.
	LatestUploadDay(ctx context.Context, isPublic bool) (string, error)

	// Close releases the store's resources.
	Close() error
}

// ChangeFeed is implemented by record stores that keep their own change log
// instead of relying on a platform stream.
type ChangeFeed interface {
	// ReadChanges returns up to limit changes recorded after position after,
	// together with the position of the last change returned.
	ReadChanges(ctx context.Context, after int64, limit int) ([]ChangeEvent, int64, error)

	// Checkpoint returns the last position committed by consumer.
	Checkpoint(ctx context.Context, consumer string) (int64, error)

	// Commit records that consumer has processed every change up to position.
	Commit(ctx context.Context, consumer string, position int64) error
}

// Sealer encrypts object bodies at rest. Sealing needs only the public key;
// opening needs the unlocked private key.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}
