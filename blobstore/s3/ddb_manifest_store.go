package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vecquery/blobstore"
)

// ManifestName is the blob name the manifest store intercepts. Opening it
// yields the path of the current segment manifest; putting it commits a new
// manifest version.
const ManifestName = "MANIFEST"

// DDBClient is the subset of the DynamoDB API the manifest store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed a manifest
// version concurrently. The caller should re-read the manifest and retry.
var ErrConcurrentCommit = errors.New("concurrent manifest commit detected")

// DDBManifestStore implements blobstore.BlobStore backed by S3, with
// DynamoDB supplying the atomic manifest pointer S3 lacks. Segment blobs
// pass through to S3; the MANIFEST pointer commits through a conditional
// DynamoDB write, so compactors and query nodes can safely race.
//
// Table schema:
//   - Partition key: collection_id (string)
//   - Sort key: version (number), monotonically increasing
//
// Each item carries a manifest_path attribute naming the S3 object of that
// manifest version.
type DDBManifestStore struct {
	s3Store      *Store
	ddbClient    DDBClient
	tableName    string
	collectionID string
}

// NewDDBManifestStore creates a new S3+DynamoDB manifest store for one
// collection.
func NewDDBManifestStore(s3Store *Store, ddbClient DDBClient, tableName, collectionID string) *DDBManifestStore {
	return &DDBManifestStore{
		s3Store:      s3Store,
		ddbClient:    ddbClient,
		tableName:    tableName,
		collectionID: collectionID,
	}
}

// Open opens a blob for reading. Opening ManifestName reads the current
// manifest path from DynamoDB.
func (s *DDBManifestStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == ManifestName {
		version, manifestPath, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(manifestPath)}, nil
	}
	return s.s3Store.Open(ctx, name)
}

// Put writes a blob. Putting ManifestName commits the manifest path as the
// next version via a conditional write.
func (s *DDBManifestStore) Put(ctx context.Context, name string, data []byte) error {
	if name == ManifestName {
		return s.commit(ctx, string(data))
	}
	return s.s3Store.Put(ctx, name, data)
}

// Delete removes a blob.
func (s *DDBManifestStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

// List returns all blob names with the given prefix.
func (s *DDBManifestStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the newest committed manifest version.
// Returns version 0 when the collection has no manifest yet.
func (s *DDBManifestStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("collection_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: s.collectionID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query manifest versions: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("malformed version attribute")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("malformed manifest_path attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse manifest version: %w", err)
	}
	return version, pathAttr.Value, nil
}

// commit writes the next manifest version, failing with ErrConcurrentCommit
// if another writer claimed it first.
func (s *DDBManifestStore) commit(ctx context.Context, manifestPath string) error {
	current, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"collection_id": &types.AttributeValueMemberS{Value: s.collectionID},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: manifestPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit manifest version: %w", err)
	}
	return nil
}

// pointerBlob serves the manifest path resolved from DynamoDB.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) Close() error {
	return nil
}
