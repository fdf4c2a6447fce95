package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mediapipe/internal/media"
)

// fakeDynamoDB stores items by key for the item operations and serves
// scripted pages for Query and Scan.
type fakeDynamoDB struct {
	items   map[string]map[string]types.AttributeValue
	pages   [][]map[string]types.AttributeValue
	queries []*dynamodb.QueryInput
	scans   []*dynamodb.ScanInput
	err     error
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(av map[string]types.AttributeValue) string {
	owner := av["identityId"].(*types.AttributeValueMemberS).Value
	key := av["objectKey"].(*types.AttributeValueMemberS).Value
	return owner + "|" + key
}

func (f *fakeDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamoDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// page returns the scripted page addressed by the start key and the key of
// the page after it.
func (f *fakeDynamoDB) page(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	n := 0
	if start != nil {
		n, _ = strconv.Atoi(start["page"].(*types.AttributeValueMemberN).Value)
	}
	if n >= len(f.pages) {
		return nil, nil
	}
	var next map[string]types.AttributeValue
	if n+1 < len(f.pages) {
		next = map[string]types.AttributeValue{"page": &types.AttributeValueMemberN{Value: strconv.Itoa(n + 1)}}
	}
	return f.pages[n], next
}

func (f *fakeDynamoDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, in)
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeDynamoDB) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scans = append(f.scans, in)
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next}, nil
}

func marshalItems(t *testing.T, recs ...*media.ContentRecord) []map[string]types.AttributeValue {
	t.Helper()
	var out []map[string]types.AttributeValue
	for _, rec := range recs {
		av, err := attributevalue.MarshalMap(toItem(rec))
		if err != nil {
			t.Fatalf("MarshalMap() error = %v", err)
		}
		out = append(out, av)
	}
	return out
}

func TestDynamoDBStore_PutRecord_Attributes(t *testing.T) {
	fake := newFakeDynamoDB()
	s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

	rec := newRecord("us-east-1:abc", "cat.jpg", true, may1)
	rec.Title = "Cat"
	if err := s.PutRecord(context.Background(), rec); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}

	item := fake.items["us-east-1:abc|public/content/us-east-1:abc/cat.jpg"]
	if item == nil {
		t.Fatal("item not stored under (identityId, objectKey)")
	}

	wantStrings := map[string]string{
		"identityId":   "us-east-1:abc",
		"objectKey":    "public/content/us-east-1:abc/cat.jpg",
		"thumbnailKey": "public/thumbnails/us-east-1:abc/cat.jpg",
		"uploadDate":   "2024-05-01T10:00:00.000Z",
		"uploadDay":    "2024-05-01",
		"title":        "Cat",
	}
	for attr, want := range wantStrings {
		got, ok := item[attr].(*types.AttributeValueMemberS)
		if !ok {
			t.Errorf("attribute %s is %T, want string", attr, item[attr])
			continue
		}
		if got.Value != want {
			t.Errorf("attribute %s = %q, want %q", attr, got.Value, want)
		}
	}
	if b, ok := item["isPublic"].(*types.AttributeValueMemberBOOL); !ok || !b.Value {
		t.Errorf("isPublic = %#v, want BOOL true", item["isPublic"])
	}
}

func TestDynamoDBStore_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamoDB()
	s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

	rec := newRecord("u1", "cat.jpg", false, may1)
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}

	got, err := s.GetRecord(ctx, "u1", rec.ObjectKey)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got == nil || *got != *rec {
		t.Errorf("GetRecord() = %+v, want %+v", got, rec)
	}

	for i := 0; i < 2; i++ {
		if err := s.DeleteRecord(ctx, "u1", rec.ObjectKey); err != nil {
			t.Fatalf("DeleteRecord() #%d error = %v", i+1, err)
		}
	}

	got, err = s.GetRecord(ctx, "u1", rec.ObjectKey)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetRecord() after delete = %+v, want nil", got)
	}
}

func TestDynamoDBStore_QueryByDay(t *testing.T) {
	ctx := context.Background()

	t.Run("queries the day index newest first", func(t *testing.T) {
		fake := newFakeDynamoDB()
		fake.pages = [][]map[string]types.AttributeValue{
			marshalItems(t, newRecord("u1", "b.jpg", true, may1.Add(time.Hour)), newRecord("u1", "a.jpg", true, may1)),
		}
		s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

		recs, err := s.QueryByDay(ctx, "2024-05-01", true, 100)
		if err != nil {
			t.Fatalf("QueryByDay() error = %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("QueryByDay() returned %d records, want 2", len(recs))
		}

		in := fake.queries[0]
		if aws.ToString(in.IndexName) != "uploadDayIndex" {
			t.Errorf("IndexName = %q, want uploadDayIndex", aws.ToString(in.IndexName))
		}
		if aws.ToBool(in.ScanIndexForward) {
			t.Error("ScanIndexForward = true, want descending")
		}
		if day := in.ExpressionAttributeValues[":day"].(*types.AttributeValueMemberS).Value; day != "2024-05-01" {
			t.Errorf(":day = %q, want 2024-05-01", day)
		}
		if pub := in.ExpressionAttributeValues[":public"].(*types.AttributeValueMemberBOOL).Value; !pub {
			t.Error(":public = false, want true")
		}
	})

	t.Run("pages until the limit is met", func(t *testing.T) {
		fake := newFakeDynamoDB()
		for p := 0; p < 3; p++ {
			var recs []*media.ContentRecord
			for i := 0; i < 2; i++ {
				recs = append(recs, newRecord("u1", fmt.Sprintf("p%d-%d.jpg", p, i), true, may1))
			}
			fake.pages = append(fake.pages, marshalItems(t, recs...))
		}
		s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

		recs, err := s.QueryByDay(ctx, "2024-05-01", true, 3)
		if err != nil {
			t.Fatalf("QueryByDay() error = %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("QueryByDay() returned %d records, want 3", len(recs))
		}
		if len(fake.queries) != 2 {
			t.Errorf("issued %d queries, want 2", len(fake.queries))
		}
		if recs[2].ObjectKey != "public/content/u1/p1-0.jpg" {
			t.Errorf("third record = %q, want p1-0", recs[2].ObjectKey)
		}
	})

	t.Run("empty pages are followed", func(t *testing.T) {
		fake := newFakeDynamoDB()
		fake.pages = [][]map[string]types.AttributeValue{
			nil,
			marshalItems(t, newRecord("u1", "late.jpg", true, may1)),
		}
		s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

		recs, err := s.QueryByDay(ctx, "2024-05-01", true, 100)
		if err != nil {
			t.Fatalf("QueryByDay() error = %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("QueryByDay() returned %d records, want 1", len(recs))
		}
	})
}

func TestDynamoDBStore_QueryByOwner(t *testing.T) {
	fake := newFakeDynamoDB()
	fake.pages = [][]map[string]types.AttributeValue{
		marshalItems(t, newRecord("u1", "b.jpg", false, may1)),
		marshalItems(t, newRecord("u1", "a.jpg", false, may1)),
	}
	s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

	recs, err := s.QueryByOwner(context.Background(), "u1", false)
	if err != nil {
		t.Fatalf("QueryByOwner() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("QueryByOwner() returned %d records, want 2", len(recs))
	}

	in := fake.queries[0]
	if in.IndexName != nil {
		t.Errorf("IndexName = %q, want base table", aws.ToString(in.IndexName))
	}
	if aws.ToString(in.KeyConditionExpression) != "identityId = :owner" {
		t.Errorf("KeyConditionExpression = %q", aws.ToString(in.KeyConditionExpression))
	}
	if aws.ToBool(in.ScanIndexForward) {
		t.Error("ScanIndexForward = true, want descending")
	}
}

func TestDynamoDBStore_Scans(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamoDB()
	fake.pages = [][]map[string]types.AttributeValue{
		marshalItems(t, newRecord("bob", "a.jpg", true, may1), newRecord("alice", "b.jpg", true, may1.Add(48*time.Hour))),
		marshalItems(t, newRecord("bob", "c.jpg", true, may1.Add(24*time.Hour))),
	}
	s := NewDynamoDBStore(fake, "content", "uploadDayIndex")

	owners, err := s.ListOwners(ctx)
	if err != nil {
		t.Fatalf("ListOwners() error = %v", err)
	}
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("ListOwners() = %v, want [alice bob]", owners)
	}

	day, err := s.LatestUploadDay(ctx, true)
	if err != nil {
		t.Fatalf("LatestUploadDay() error = %v", err)
	}
	if day != "2024-05-03" {
		t.Errorf("LatestUploadDay() = %q, want 2024-05-03", day)
	}
}

func TestDynamoDBStore_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("throttled")
	fake := newFakeDynamoDB()
	fake.err = boom
	s := NewDynamoDBStore(fake, "content", "uploadDayIndex")
	ctx := context.Background()

	if err := s.PutRecord(ctx, newRecord("u1", "a.jpg", true, may1)); !errors.Is(err, boom) {
		t.Errorf("PutRecord() error = %v, want wrapped %v", err, boom)
	}
	if _, err := s.QueryByDay(ctx, "2024-05-01", true, 10); !errors.Is(err, boom) {
		t.Errorf("QueryByDay() error = %v, want wrapped %v", err, boom)
	}
	if _, err := s.ListOwners(ctx); !errors.Is(err, boom) {
		t.Errorf("ListOwners() error = %v, want wrapped %v", err, boom)
	}
}
