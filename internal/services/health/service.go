package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. db may be nil when running on in-memory repositories.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status reports overall health and the state of the database connection.
func (s *Service) Status(ctx context.Context) map[string]any {
	if s == nil || s.DB == nil {
		return map[string]any{"ok": true, "database": "memory"}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		return map[string]any{"ok": false, "database": "unavailable"}
	}
	return map[string]any{"ok": true, "database": "ok"}
}
