package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
)

// Upload is a file held in memory until it is matched or expires.
type Upload struct {
	ID       uuid.UUID `json:"upload_id"`
	Filename string    `json:"filename"`
	Size     int       `json:"size"`
	Data     []byte    `json:"-"`

	expiresAt  time.Time
	lastAccess time.Time
}

// UploadStore keeps uploaded files so later requests can reference them by ID.
type UploadStore struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]*Upload
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewUploadStore creates a store holding at most maxSize files for ttl each.
func NewUploadStore(maxSize int, ttl time.Duration) *UploadStore {
	if maxSize <= 0 {
		maxSize = 64
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &UploadStore{
		uploads: make(map[uuid.UUID]*Upload),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores data without copying it and returns its metadata.
func (s *UploadStore) Put(filename string, data []byte) *Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.uploads) >= s.maxSize {
		s.evictLRU()
	}

	now := s.now()
	u := &Upload{
		ID:         uuid.New(),
		Filename:   filename,
		Size:       len(data),
		Data:       data,
		expiresAt:  now.Add(s.ttl),
		lastAccess: now,
	}
	s.uploads[u.ID] = u
	return u
}

// Get returns a live upload.
func (s *UploadStore) Get(id uuid.UUID) (*Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[id]
	now := s.now()
	if !ok || now.After(u.expiresAt) {
		return nil, fmt.Errorf("%w: upload %s", apperrors.ErrNotFound, id)
	}
	u.lastAccess = now
	return u, nil
}

// Delete drops an upload if present.
func (s *UploadStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, id)
}

// Len is the number of retained uploads, expired or not.
func (s *UploadStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *UploadStore) evictLRU() {
	var oldest *Upload
	for _, u := range s.uploads {
		if oldest == nil || u.lastAccess.Before(oldest.lastAccess) {
			oldest = u
		}
	}
	if oldest != nil {
		delete(s.uploads, oldest.ID)
	}
}

// Cleanup removes expired uploads.
func (s *UploadStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, u := range s.uploads {
		if now.After(u.expiresAt) {
			delete(s.uploads, id)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (s *UploadStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}
