package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"mediapipe/internal/media"
)

// DeriverPayload is the invocation payload of the deriver function: an S3
// notification plus optional out-of-band fields supplied by the uploader.
type DeriverPayload struct {
	Records     []events.S3EventRecord `json:"Records"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	IsPublic    *bool                  `json:"isPublic,omitempty"`
}

// Params returns the out-of-band fields as deriver parameters.
func (p DeriverPayload) Params() media.DeriveParams {
	return media.DeriveParams{
		Title:       p.Title,
		Description: p.Description,
		IsPublic:    p.IsPublic,
	}
}

// ObjectEvents converts every record of the notification. Records that are
// neither creations nor removals (such as s3:TestEvent) are dropped.
func (p DeriverPayload) ObjectEvents() ([]media.ObjectEvent, error) {
	out := make([]media.ObjectEvent, 0, len(p.Records))
	for _, rec := range p.Records {
		var kind media.ObjectEventKind
		switch {
		case strings.HasPrefix(rec.EventName, "ObjectCreated:"):
			kind = media.ObjectCreated
		case strings.HasPrefix(rec.EventName, "ObjectRemoved:"):
			kind = media.ObjectRemoved
		default:
			continue
		}

		// Keys arrive form-encoded: "+" is a space.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decoding object key %q: %w", rec.S3.Object.Key, err)
		}

		out = append(out, media.ObjectEvent{
			Kind:   kind,
			Bucket: rec.S3.Bucket.Name,
			Key:    key,
			Time:   rec.EventTime,
		})
	}
	return out, nil
}

// Attribute names of content records in the table and its stream.
const (
	attrOwnerID    = "identityId"
	attrObjectKey  = "objectKey"
	attrIsPublic   = "isPublic"
	attrUploadDay  = "uploadDay"
	attrUploadDate = "uploadDate"
)

// ChangeEventsFromStream converts a DynamoDB Streams batch. The stream view
// must include new images; removals carry none.
func ChangeEventsFromStream(ev events.DynamoDBEvent) []media.ChangeEvent {
	out := make([]media.ChangeEvent, 0, len(ev.Records))
	for _, rec := range ev.Records {
		change := media.ChangeEvent{
			ID:        rec.EventID,
			Kind:      media.ChangeKind(rec.EventName),
			OwnerID:   stringAttr(rec.Change.Keys, attrOwnerID),
			ObjectKey: stringAttr(rec.Change.Keys, attrObjectKey),
		}

		if img := rec.Change.NewImage; len(img) > 0 {
			day := stringAttr(img, attrUploadDay)
			if day == "" {
				if stamp, err := media.ParseUploadStamp(stringAttr(img, attrUploadDate)); err == nil {
					day = stamp.Day()
				}
			}
			change.NewImage = &media.ChangeImage{
				IsPublic:  boolAttr(img, attrIsPublic),
				UploadDay: day,
			}
			if change.OwnerID == "" {
				change.OwnerID = stringAttr(img, attrOwnerID)
			}
		}

		out = append(out, change)
	}
	return out
}

// stringAttr reads a string attribute. The accessors on
// events.DynamoDBAttributeValue panic on a type mismatch, so the type is
// checked first.
func stringAttr(item map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := item[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}

func boolAttr(item map[string]events.DynamoDBAttributeValue, name string) bool {
	v, ok := item[name]
	if !ok || v.DataType() != events.DataTypeBoolean {
		return false
	}
	return v.Boolean()
}
