package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"mediapipe/internal/media"
)

type fakeObject struct {
	body        []byte
	contentType *string
	metadata    map[string]string
}

// fakeS3 serves single-part uploads and plain gets from memory.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	bucketErr error
	getErr    error
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var md map[string]string
	if len(in.Metadata) > 0 {
		md = maps.Clone(in.Metadata)
	}
	f.objects[aws.ToString(in.Key)] = fakeObject{body: body, contentType: in.ContentType, metadata: md}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.body)),
		ContentType: obj.contentType,
		Metadata:    obj.metadata,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketErr != nil {
		return nil, f.bucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

var errMultipart = errors.New("multipart upload not supported by fake")

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func TestS3Store(t *testing.T) {
	storeContract(t, func(t *testing.T) media.ObjectStore { return NewS3Store(newFakeS3(), "media") })
}

func TestS3Store_MetadataNeverNil(t *testing.T) {
	ctx := context.Background()
	s := NewS3Store(newFakeS3(), "media")

	if err := s.Put(ctx, &media.Object{Key: "public/content/u1/a.jpg", Body: []byte("x")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "public/content/u1/a.jpg")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Metadata == nil {
		t.Error("Metadata = nil, want empty map")
	}
}

func TestS3Store_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("generic NotFound code maps to ErrObjectNotFound", func(t *testing.T) {
		fake := newFakeS3()
		fake.getErr = &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
		_, err := NewS3Store(fake, "media").Get(ctx, "k")
		if !errors.Is(err, media.ErrObjectNotFound) {
			t.Errorf("Get() error = %v, want ErrObjectNotFound", err)
		}
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		fake := newFakeS3()
		fake.getErr = boom
		_, err := NewS3Store(fake, "media").Get(ctx, "k")
		if !errors.Is(err, boom) || errors.Is(err, media.ErrObjectNotFound) {
			t.Errorf("Get() error = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("delete of a missing key succeeds", func(t *testing.T) {
		fake := newFakeS3()
		fake.deleteErr = &types.NoSuchKey{}
		if err := NewS3Store(fake, "media").Delete(ctx, "k"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	})

	t.Run("delete failures propagate", func(t *testing.T) {
		fake := newFakeS3()
		fake.deleteErr = boom
		if err := NewS3Store(fake, "media").Delete(ctx, "k"); !errors.Is(err, boom) {
			t.Errorf("Delete() error = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("missing bucket fails validation", func(t *testing.T) {
		fake := newFakeS3()
		fake.bucketErr = &types.NotFound{}
		if err := NewS3Store(fake, "media").ValidateSetup(ctx); err == nil {
			t.Error("ValidateSetup() expected error for missing bucket")
		}
	})
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&types.NoSuchKey{}, true},
		{&types.NotFound{}, true},
		{&smithy.GenericAPIError{Code: "NotFound"}, true},
		{fmt.Errorf("wrapped: %w", &types.NoSuchKey{}), true},
		{&smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{errors.New("timeout"), false},
	}

	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
