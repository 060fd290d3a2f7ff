package media

import "time"

// Blob is one physical content payload, keyed by its SHA-256 fingerprint.
// There is exactly one Blob per distinct byte sequence; rows are never
// mutated or deleted by this core.
type Blob struct {
	Fingerprint string    `json:"fingerprint"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	StorageKey  string    `json:"storage_key"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Reference is one logical upload event pointing at a Blob. Many references
// may share a fingerprint; deleting a reference never deletes the blob.
type Reference struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	UserID       string    `json:"user_id"`
	MemoryID     string    `json:"memory_id,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnerContext identifies who uploaded an attachment and which memory
// produced it.
type OwnerContext struct {
	UserID   string
	MemoryID string
}

// Stats summarizes the dedup store. DedupRate is the fraction of upload
// events that reused an existing blob.
type Stats struct {
	TotalReferences  int64            `json:"total_references"`
	UniqueBlobs      int64            `json:"unique_blobs"`
	TotalLogicalSize int64            `json:"total_logical_size"`
	ByType           map[string]int64 `json:"by_type"`
	DedupRate        float64          `json:"dedup_rate"`
}
