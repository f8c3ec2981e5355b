// Package minio provides a blobstore implementation for MinIO and other
// S3-compatible object stores.
//
// Construct the client with the minio-go SDK:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil { ... }
//	store := miniostore.NewStore(client, "segments", "collections/c1")
package minio
