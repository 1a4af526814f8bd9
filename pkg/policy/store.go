package policy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
)

// Store holds the active ContentPolicy snapshot behind an atomic pointer so
// readers never block on a reload in progress.
type Store struct {
	active   atomic.Pointer[ContentPolicy]
	source   Source
	interval time.Duration
	logger   *logrus.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

type StoreOpts struct {
	// ReloadInterval defaults to 5 minutes.
	ReloadInterval time.Duration
	// WatchPath enables fsnotify-driven reloads for file-backed sources.
	WatchPath string
}

func NewStore(source Source, logger *logrus.Logger, opts StoreOpts) *Store {
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = 5 * time.Minute
	}
	s := &Store{
		source:   source,
		interval: opts.ReloadInterval,
		logger:   logger,
		done:     make(chan struct{}),
	}
	s.active.Store(Default())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.reload(ctx); err != nil {
		logger.WithError(err).Warn("initial policy load failed, serving built-in defaults")
	}
	go s.reloadLoop(ctx, opts.WatchPath)
	return s
}

// Current returns the latest loaded snapshot. It never blocks and never
// returns nil.
func (s *Store) Current() *ContentPolicy {
	return s.active.Load()
}

// Shutdown stops the background reloader.
func (s *Store) Shutdown() {
	s.cancel()
	<-s.done
}

func (s *Store) reloadLoop(ctx context.Context, watchPath string) {
	defer close(s.done)

	var watchEvents chan fsnotify.Event
	if watchPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.logger.WithError(err).Warn("policy file watcher unavailable, falling back to interval reloads")
		} else {
			defer watcher.Close()
			if err := watcher.Add(watchPath); err != nil {
				s.logger.WithError(err).WithField("path", watchPath).Warn("cannot watch policy file")
			} else {
				watchEvents = make(chan fsnotify.Event, 1)
				go func() {
					for evt := range watcher.Events {
						if evt.Op&(fsnotify.Write|fsnotify.Create) != 0 {
							select {
							case watchEvents <- evt:
							default:
							}
						}
					}
				}()
			}
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-watchEvents:
			// Editors often emit a burst of writes; let the file settle.
			time.Sleep(100 * time.Millisecond)
		}
		if err := s.reload(ctx); err != nil {
			s.logger.WithError(err).Warn("policy reload failed, keeping last-known-good snapshot")
		}
	}
}

// reload fetches a fresh snapshot and swaps it in. A fetch or compile failure
// leaves the active snapshot untouched; the service never fails closed by
// serving no policy.
func (s *Store) reload(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	next, err := s.source.Fetch(fetchCtx)
	if err != nil {
		prometheus.PolicyReloadTotal.WithLabelValues("fetch_error").Inc()
		return err
	}
	if err := next.Compile(); err != nil {
		prometheus.PolicyReloadTotal.WithLabelValues("invalid").Inc()
		return err
	}

	current := s.active.Load()
	if next.Version <= current.Version && current.Version > 1 {
		prometheus.PolicyReloadTotal.WithLabelValues("stale").Inc()
		s.logger.WithFields(logrus.Fields{
			"active_version":  current.Version,
			"fetched_version": next.Version,
		}).Debug("fetched policy is not newer than active snapshot")
		return nil
	}

	s.active.Store(next)
	prometheus.PolicyReloadTotal.WithLabelValues("ok").Inc()
	prometheus.PolicyVersion.Set(float64(next.Version))
	s.logger.WithField("version", next.Version).Info("policy snapshot activated")
	return nil
}
