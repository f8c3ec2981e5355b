// Package s3 provides blobstore implementations backed by Amazon S3.
//
// Store serves segment blobs directly from S3 with range reads.
// DDBManifestStore layers DynamoDB on top for atomic manifest pointer
// commits, which lets concurrent compactors coordinate without losing
// updates.
//
// Construct the S3 client with the AWS SDK config loader:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "collections/c1")
package s3
