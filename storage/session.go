package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Backend is the persistence the session storage writes through to.
// store.SQLiteStore satisfies it.
type Backend interface {
	GetSession(ctx context.Context, key string, now time.Time) ([]byte, error)
	SetSession(ctx context.Context, key string, val []byte, expiresAt time.Time) error
	DeleteSession(ctx context.Context, key string) error
	ResetSessions(ctx context.Context) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SQLStorage implements fiber's Storage interface on top of the SQLite
// session table.
type SQLStorage struct {
	backend Backend
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	stop chan struct{}
	once sync.Once
}

// NewSQLStorage creates a session storage. A positive gcInterval starts a
// background sweep of expired rows until Close is called.
func NewSQLStorage(backend Backend, gcInterval time.Duration, logger *slog.Logger) *SQLStorage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStorage{
		backend: backend,
		timeout: 5 * time.Second,
		now:     time.Now,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	if gcInterval > 0 {
		go s.gc(gcInterval)
	}
	return s
}

func (s *SQLStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get retrieves session data. Missing or expired keys return nil.
func (s *SQLStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.backend.GetSession(ctx, key, s.now())
}

// Set stores session data. A zero exp never expires.
func (s *SQLStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	var expiresAt time.Time
	if exp > 0 {
		expiresAt = s.now().Add(exp)
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.backend.SetSession(ctx, key, val, expiresAt)
}

// Delete removes a session.
func (s *SQLStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.backend.DeleteSession(ctx, key)
}

// Reset removes all sessions.
func (s *SQLStorage) Reset() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.backend.ResetSessions(ctx)
}

// Close stops the sweeper. The backend is owned by the caller.
func (s *SQLStorage) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *SQLStorage) gc(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep deletes expired sessions once.
func (s *SQLStorage) sweep() {
	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.backend.PurgeExpiredSessions(ctx, s.now())
	if err != nil {
		s.logger.Warn("failed to purge expired sessions", "err", err)
		return
	}
	if n > 0 {
		s.logger.Debug("purged expired sessions", "count", n)
	}
}
