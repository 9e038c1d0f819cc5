// Package minio stores exported segmentation runs in MinIO or another
// S3-compatible server through the MinIO client, without the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
//	    Secure: true,
//	})
//	if err != nil {
//	    return err
//	}
//	runs := blobstore.NewRuns(minioblob.NewStore(client, "labels", "segmentations"), nil)
//
// Manifests are tagged application/json; label rasters are stored as
// application/octet-stream.
package minio
