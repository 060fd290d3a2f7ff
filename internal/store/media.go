package store

import (
	"context"
	"fmt"

	"github.com/nelrik/waypost/internal/media"
)

// FindBlobByFingerprint returns the blob with the given fingerprint, or nil
// when no such blob exists.
func (s *Store) FindBlobByFingerprint(ctx context.Context, fingerprint string) (*media.Blob, error) {
	var b media.Blob
	err := s.db.QueryRow(ctx, `
		SELECT fingerprint, size_bytes, content_type, storage_key, first_seen_at
		FROM media_blobs
		WHERE fingerprint = $1`, fingerprint,
	).Scan(&b.Fingerprint, &b.SizeBytes, &b.ContentType, &b.StorageKey, &b.FirstSeenAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find blob: %w", err)
	}
	return &b, nil
}

// InsertBlob inserts a blob row, ignoring a fingerprint conflict. The
// returned flag reports whether a row was actually created; false means a
// concurrent identical upload got there first, which is harmless since the
// storage key is derived from the content.
func (s *Store) InsertBlob(ctx context.Context, b *media.Blob) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO media_blobs (fingerprint, size_bytes, content_type, storage_key, first_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO NOTHING`,
		b.Fingerprint, b.SizeBytes, b.ContentType, b.StorageKey, b.FirstSeenAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert blob: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertReference records one upload event pointing at a blob.
func (s *Store) InsertReference(ctx context.Context, r *media.Reference) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO media_references (id, fingerprint, user_id, memory_id, original_name, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		r.ID, r.Fingerprint, r.UserID, r.MemoryID, r.OriginalName, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

// MediaStats aggregates dedup effectiveness across all references.
func (s *Store) MediaStats(ctx context.Context) (*media.Stats, error) {
	stats := &media.Stats{ByType: make(map[string]int64)}

	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM media_references),
			(SELECT count(*) FROM media_blobs),
			(SELECT coalesce(sum(b.size_bytes), 0)
			 FROM media_references r
			 JOIN media_blobs b ON b.fingerprint = r.fingerprint)`,
	).Scan(&stats.TotalReferences, &stats.UniqueBlobs, &stats.TotalLogicalSize)
	if err != nil {
		return nil, fmt.Errorf("media stats: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT content_type, count(*)
		FROM media_blobs
		GROUP BY content_type`)
	if err != nil {
		return nil, fmt.Errorf("media stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ct string
		var n int64
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.ByType[ct] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("media stats by type: %w", err)
	}

	if stats.TotalReferences > 0 {
		stats.DedupRate = float64(stats.TotalReferences-stats.UniqueBlobs) / float64(stats.TotalReferences)
	}
	return stats, nil
}
