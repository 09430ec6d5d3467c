// Package s3 uploads node artifact archives to S3-compatible object
// storage.
//
// The bucket is created on first use when it does not exist. Keys are
// chosen by the caller; the fleet code uses <plan>/<node>/artifacts.tar.gz.
package s3
