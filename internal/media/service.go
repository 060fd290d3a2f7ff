package media

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nelrik/waypost/internal/core"
	"go.uber.org/zap"
)

// Persistence is the relational surface the dedup store needs. InsertBlob
// must be atomic under its fingerprint uniqueness constraint: it reports
// whether a row was created and silently ignores a conflict, so two racing
// uploads of identical bytes never diverge.
type Persistence interface {
	FindBlobByFingerprint(ctx context.Context, fingerprint string) (*Blob, error)
	InsertBlob(ctx context.Context, b *Blob) (bool, error)
	InsertReference(ctx context.Context, r *Reference) error
	MediaStats(ctx context.Context) (*Stats, error)
}

// SeenCache is an optional hot cache of known fingerprints in front of the
// relational store. A nil cache disables it.
type SeenCache interface {
	Seen(ctx context.Context, fingerprint string) bool
	MarkSeen(ctx context.Context, fingerprint string)
}

// Service guarantees at most one physical copy of any byte sequence, with
// fast existence lookup by fingerprint.
type Service struct {
	db     Persistence
	cas    *CAS
	cache  SeenCache
	logger *zap.Logger
}

// NewService creates the dedup store. cache may be nil.
func NewService(db Persistence, cas *CAS, cache SeenCache, logger *zap.Logger) *Service {
	return &Service{db: db, cas: cas, cache: cache, logger: logger}
}

// Store deduplicates and persists one upload. Byte-identical content stored
// any number of times yields exactly one Blob; every call yields exactly one
// Reference.
func (s *Service) Store(ctx context.Context, data []byte, declaredType, originalName string, owner OwnerContext) (*Reference, error) {
	if len(data) == 0 {
		return nil, core.Validationf("empty payload")
	}

	digest := Fingerprint(data)

	exists := s.cache != nil && s.cache.Seen(ctx, digest)
	if !exists {
		blob, err := s.db.FindBlobByFingerprint(ctx, digest)
		if err != nil {
			return nil, core.Storagef("find blob: %v", err)
		}
		exists = blob != nil
	}

	if !exists {
		contentType := SniffContentType(data, declaredType)
		key, err := s.cas.Write(digest, data)
		if err != nil {
			return nil, core.Storagef("write object: %v", err)
		}
		created, err := s.db.InsertBlob(ctx, &Blob{
			Fingerprint: digest,
			SizeBytes:   int64(len(data)),
			ContentType: contentType,
			StorageKey:  key,
			FirstSeenAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, core.Storagef("insert blob: %v", err)
		}
		if created {
			s.logger.Info("blob stored",
				zap.String("fingerprint", digest),
				zap.String("content_type", contentType),
				zap.Int("size", len(data)))
		} else {
			// Lost the insert race to an identical concurrent upload. The
			// object bytes are identical, so nothing diverged.
			s.logger.Debug("blob insert raced", zap.String("fingerprint", digest))
		}
	} else {
		s.logger.Debug("blob deduplicated", zap.String("fingerprint", digest))
	}

	ref := &Reference{
		ID:           uuid.New().String(),
		Fingerprint:  digest,
		UserID:       owner.UserID,
		MemoryID:     owner.MemoryID,
		OriginalName: originalName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.InsertReference(ctx, ref); err != nil {
		return nil, core.Storagef("insert reference: %v", err)
	}

	if s.cache != nil {
		s.cache.MarkSeen(ctx, digest)
	}
	return ref, nil
}

// Open returns a reader for the stored content of a fingerprint.
func (s *Service) Open(ctx context.Context, fingerprint string) (io.ReadCloser, *Blob, error) {
	blob, err := s.db.FindBlobByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, nil, core.Storagef("find blob: %v", err)
	}
	if blob == nil {
		return nil, nil, core.ErrNotFound
	}
	rc, err := s.cas.Open(blob.StorageKey)
	if err != nil {
		return nil, nil, core.Storagef("open object: %v", err)
	}
	return rc, blob, nil
}

// Stats reports dedup effectiveness across all stored references.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.db.MediaStats(ctx)
	if err != nil {
		return nil, core.Storagef("media stats: %v", err)
	}
	return stats, nil
}
