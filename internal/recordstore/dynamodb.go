package recordstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mediapipe/internal/media"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is the table's item shape. Attribute names are shared with the
// web clients and the stream consumer.
type dynamoItem struct {
	IdentityID   string `dynamodbav:"identityId"`
	ObjectKey    string `dynamodbav:"objectKey"`
	ThumbnailKey string `dynamodbav:"thumbnailKey"`
	IsPublic     bool   `dynamodbav:"isPublic"`
	UploadDate   string `dynamodbav:"uploadDate"`
	UploadDay    string `dynamodbav:"uploadDay"`
	Title        string `dynamodbav:"title"`
	Description  string `dynamodbav:"description"`
}

func toItem(rec *media.ContentRecord) dynamoItem {
	return dynamoItem{
		IdentityID:   rec.OwnerID,
		ObjectKey:    rec.ObjectKey,
		ThumbnailKey: rec.ThumbnailKey,
		IsPublic:     rec.IsPublic,
		UploadDate:   rec.Uploaded.Timestamp(),
		UploadDay:    rec.Uploaded.Day(),
		Title:        rec.Title,
		Description:  rec.Description,
	}
}

func (it dynamoItem) record() (*media.ContentRecord, error) {
	stamp, err := media.ParseUploadStamp(it.UploadDate)
	if err != nil {
		return nil, err
	}
	return &media.ContentRecord{
		OwnerID:      it.IdentityID,
		ObjectKey:    it.ObjectKey,
		ThumbnailKey: it.ThumbnailKey,
		IsPublic:     it.IsPublic,
		Uploaded:     stamp,
		Title:        it.Title,
		Description:  it.Description,
	}, nil
}

// DynamoDBStore keeps content records in a DynamoDB table keyed by
// (identityId, objectKey) with a global secondary index on
// (uploadDay, uploadDate). Change capture is DynamoDB Streams.
type DynamoDBStore struct {
	client   DynamoDBAPI
	table    string
	dayIndex string
}

// NewDynamoDBStore creates a store over an existing client.
func NewDynamoDBStore(client DynamoDBAPI, table, dayIndex string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table, dayIndex: dayIndex}
}

// NewDynamoDBClient builds a client from the default AWS credential chain.
// endpoint, when set, points the client at a local emulator.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *DynamoDBStore) recordKey(ownerID, objectKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"identityId": &types.AttributeValueMemberS{Value: ownerID},
		"objectKey":  &types.AttributeValueMemberS{Value: objectKey},
	}
}

func (s *DynamoDBStore) PutRecord(ctx context.Context, rec *media.ContentRecord) error {
	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return fmt.Errorf("marshaling record %s: %w", rec.ObjectKey, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting record %s: %w", rec.ObjectKey, err)
	}
	return nil
}

func (s *DynamoDBStore) GetRecord(ctx context.Context, ownerID, objectKey string) (*media.ContentRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.recordKey(ownerID, objectKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", objectKey, err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshaling record %s: %w", objectKey, err)
	}
	return it.record()
}

// DeleteRecord is unconditional, so deleting a missing record succeeds.
func (s *DynamoDBStore) DeleteRecord(ctx context.Context, ownerID, objectKey string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.recordKey(ownerID, objectKey),
	})
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", objectKey, err)
	}
	return nil
}

func (s *DynamoDBStore) QueryByOwner(ctx context.Context, ownerID string, isPublic bool) ([]*media.ContentRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("identityId = :owner"),
		FilterExpression:       aws.String("isPublic = :public"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner":  &types.AttributeValueMemberS{Value: ownerID},
			":public": &types.AttributeValueMemberBOOL{Value: isPublic},
		},
		ScanIndexForward: aws.Bool(false),
	}

	recs, err := s.query(ctx, in, 0)
	if err != nil {
		return nil, fmt.Errorf("querying records of %s: %w", ownerID, err)
	}
	return recs, nil
}

// QueryByDay pages through the day index until limit matching records are
// collected. DynamoDB applies Limit before the filter, so a single page may
// hold fewer matches than asked for.
func (s *DynamoDBStore) QueryByDay(ctx context.Context, day string, isPublic bool, limit int) ([]*media.ContentRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.dayIndex),
		KeyConditionExpression: aws.String("uploadDay = :day"),
		FilterExpression:       aws.String("isPublic = :public"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":day":    &types.AttributeValueMemberS{Value: day},
			":public": &types.AttributeValueMemberBOOL{Value: isPublic},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	recs, err := s.query(ctx, in, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records of %s: %w", day, err)
	}
	return recs, nil
}

// query collects every page of in, stopping early once limit records are
// held. A limit of 0 reads everything.
func (s *DynamoDBStore) query(ctx context.Context, in *dynamodb.QueryInput, limit int) ([]*media.ContentRecord, error) {
	var recs []*media.ContentRecord

	p := dynamodb.NewQueryPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshaling records: %w", err)
		}
		for _, it := range items {
			rec, err := it.record()
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
			if limit > 0 && len(recs) == limit {
				return recs, nil
			}
		}
	}
	return recs, nil
}

// ListOwners scans the key attribute of the whole table.
func (s *DynamoDBStore) ListOwners(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("identityId"),
	}, func(it dynamoItem) {
		seen[it.IdentityID] = struct{}{}
	})
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}

	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *DynamoDBStore) LatestUploadDay(ctx context.Context, isPublic bool) (string, error) {
	latest := ""

	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("uploadDay"),
		FilterExpression:     aws.String("isPublic = :public"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":public": &types.AttributeValueMemberBOOL{Value: isPublic},
		},
	}, func(it dynamoItem) {
		if it.UploadDay > latest {
			latest = it.UploadDay
		}
	})
	if err != nil {
		return "", fmt.Errorf("finding latest upload day: %w", err)
	}
	return latest, nil
}

func (s *DynamoDBStore) scan(ctx context.Context, in *dynamodb.ScanInput, fn func(dynamoItem)) error {
	p := dynamodb.NewScanPaginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}

		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return fmt.Errorf("unmarshaling items: %w", err)
		}
		for _, it := range items {
			fn(it)
		}
	}
	return nil
}

// Close is a no-op; the client holds no resources that need releasing.
func (s *DynamoDBStore) Close() error {
	return nil
}

var _ media.RecordStore = (*DynamoDBStore)(nil)
