package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// ErrLoggedOut means the session waits for a QR scan; restarting cannot fix it.
var ErrLoggedOut = errors.New("bridge session is logged out")

var sessionRestarts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "bridge_session_restarts_total",
	Help: "Start requests issued for a stopped or failed bridge session.",
})

func init() {
	prometheus.MustRegister(sessionRestarts)
}

// SessionAPI is the part of the bridge client the supervisor drives.
type SessionAPI interface {
	Session(ctx context.Context) (SessionInfo, error)
	StartSession(ctx context.Context) error
}

// Supervisor keeps the bridge session in the WORKING state.
type Supervisor struct {
	API SessionAPI
	// Interval between health checks once the session is up.
	Interval time.Duration
	// MaxTries bounds one recovery attempt.
	MaxTries uint
	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewSupervisor returns a Supervisor with production defaults.
func NewSupervisor(api SessionAPI) *Supervisor {
	return &Supervisor{
		API:            api,
		Interval:       30 * time.Second,
		MaxTries:       8,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Ensure brings the session to WORKING, restarting it when stopped or
// failed and waiting while it starts. It gives up with ErrLoggedOut when the
// session needs a QR scan.
func (s *Supervisor) Ensure(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialBackoff
	b.MaxInterval = s.MaxBackoff

	op := func() (string, error) {
		info, err := s.API.Session(ctx)
		if err != nil {
			return "", err
		}
		switch info.Status {
		case StatusWorking:
			return info.Status, nil
		case StatusScanQR:
			return info.Status, backoff.Permanent(ErrLoggedOut)
		case StatusStopped, StatusFailed:
			sessionRestarts.Inc()
			if err := s.API.StartSession(ctx); err != nil {
				return info.Status, fmt.Errorf("restarting session: %w", err)
			}
			return info.Status, fmt.Errorf("session was %s, restart requested", info.Status)
		default:
			return info.Status, fmt.Errorf("session is %s", info.Status)
		}
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("bridge session not ready")
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.MaxTries),
		backoff.WithNotify(notify),
	)
	return err
}

// Run checks the session every Interval until ctx is cancelled or the
// session is logged out.
func (s *Supervisor) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if err := s.Ensure(ctx); err != nil {
			if errors.Is(err, ErrLoggedOut) {
				log.Error().Msg("bridge session needs a QR scan; supervisor stopped")
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("bridge session recovery failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
