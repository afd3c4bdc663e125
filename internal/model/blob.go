package model

import "time"

// FileBlob is a single cached file attachment, scoped to the owning
// record's id and a filename (data-model.md section 3, "File blob").
type FileBlob struct {
	RecordID   string
	Filename   string
	Data       []byte
	Expiration *time.Time // nil => never auto-expires
	Created    time.Time
	Updated    time.Time
}

// Expired reports whether the blob's expiration has passed as of now.
func (b *FileBlob) Expired(now time.Time) bool {
	return b.Expiration != nil && b.Expiration.Before(now)
}
