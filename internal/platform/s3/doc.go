// Package s3 stores objects in an S3-compatible bucket.
//
// It works against AWS S3 and against self-hosted services such as MinIO,
// which are addressed with a custom endpoint and path-style requests.
package s3
