package media

import "time"

// ObjectEventKind distinguishes object-store notifications.
type ObjectEventKind int

const (
	ObjectCreated ObjectEventKind = iota + 1
	ObjectRemoved
)

func (k ObjectEventKind) String() string {
	switch k {
	case ObjectCreated:
		return "created"
	case ObjectRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ObjectEvent is one object-store notification. Key is already decoded.
type ObjectEvent struct {
	Kind   ObjectEventKind
	Bucket string
	Key    string
	Time   time.Time
}

// DeriveParams carries the out-of-band fields supplied with a creation.
// A nil IsPublic means "use the visibility segment of the key".
type DeriveParams struct {
	Title       string
	Description string
	IsPublic    *bool
}

// Outcome reports what the deriver did with an event.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeDerived
	OutcomeRemoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDerived:
		return "derived"
	case OutcomeRemoved:
		return "removed"
	default:
		return "skipped"
	}
}

// ChangeKind is the kind of a record-store change.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ChangeImage is the part of a record's new image the materializer needs.
// UploadDay is "" when the image carried none.
type ChangeImage struct {
	IsPublic  bool
	UploadDay string
}

// ChangeEvent describes one insert, update or delete on the record store.
// NewImage is nil for removals.
type ChangeEvent struct {
	ID        string
	Kind      ChangeKind
	OwnerID   string
	ObjectKey string
	NewImage  *ChangeImage
}
