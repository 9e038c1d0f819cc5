// Package hash provides the CRC32-Castagnoli (CRC32C) checksum shared by the
// label block format and S3 uploads.
//
//	checksum := hash.CRC32C(data)
package hash
