// Package s3 stores exported segmentation runs in Amazon S3 or an
// S3-compatible service.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("segmentations"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	runs := blobstore.NewRuns(store, nil)
//
// Reads are ranged GetObject calls, so decoding a label raster fetches it
// block by block. Writes stream through the S3 upload manager and switch
// to multipart uploads once a blob exceeds one part. Every upload carries
// a CRC32C checksum unless disabled in UploadConfig.
package s3
