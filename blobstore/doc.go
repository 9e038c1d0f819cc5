// Package blobstore provides storage for exported segmentation runs.
//
// BlobStore is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use. Blob names are slash-separated relative
// paths; CheckName rejects anything else.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Object stores build their blobs from NewRangeBlob, which serves reads
// with ranged fetches, and NewStreamingBlob, which pipes writes into a
// single upload that only becomes visible on Close.
//
// # Runs
//
// Runs lays a segmentation run out as "<id>/labels.rglb" plus a
// "<id>/run.json" manifest. The manifest is written last, so List only
// reports runs whose export completed:
//
//	runs := blobstore.NewRuns(store, rc)
//	if err := runs.WriteLabels(ctx, id, labelcodec.RasterSource(labels, 0), labelcodec.CompressionLZ4); err != nil {
//	    return err
//	}
//	if err := runs.WriteManifest(ctx, id, manifest); err != nil {
//	    return err
//	}
//	m, hdr, err := runs.ReadLabels(ctx, id, matrix.Auto)
package blobstore
