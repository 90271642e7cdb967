package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Factory builds the pipeline for one track of a session.
type Factory func(sessionID, trackID string) (*Pipeline, error)

type loopKey struct {
	sessionID string
	trackID   string
}

type ingestLoop struct {
	cancel context.CancelFunc
	track  core.Track
	done   chan struct{}
}

// stop cancels the loop and closes its track so a blocked read returns.
func (l *ingestLoop) stop() {
	l.cancel()
	l.track.Close()
}

// Manager runs one ingestion goroutine per remote audio track and keeps a
// cancel handle for each so sessions can be torn down deterministically.
type Manager struct {
	factory Factory
	sink    core.EventSink
	metrics *metrics.Metrics

	mu       sync.Mutex
	loops    map[loopKey]*ingestLoop
	sessions map[string]int
	attached map[string]struct{}
	wg       sync.WaitGroup
}

func NewManager(factory Factory, sink core.EventSink, m *metrics.Metrics) *Manager {
	return &Manager{
		factory:  factory,
		sink:     sink,
		metrics:  m,
		loops:    make(map[loopKey]*ingestLoop),
		sessions: make(map[string]int),
		attached: make(map[string]struct{}),
	}
}

// Attach starts ingesting track for sessionID. Non-audio tracks are ignored.
func (m *Manager) Attach(ctx context.Context, sessionID string, track core.Track) error {
	logger := log.With().
		Str("module", "pipeline").
		Str("session_id", sessionID).
		Str("track_id", track.ID()).
		Str("mime", track.MimeType()).
		Logger()

	if !track.IsAudio() {
		logger.Info().Msg("ignoring non-audio track")
		return nil
	}
	p, err := m.factory(sessionID, track.ID())
	if err != nil {
		logger.Error().Err(err).Msg("pipeline setup failed")
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	key := loopKey{sessionID: sessionID, trackID: track.ID()}
	l := &ingestLoop{cancel: cancel, track: track, done: make(chan struct{})}

	m.mu.Lock()
	if old, ok := m.loops[key]; ok {
		logger.Info().Msg("replacing existing ingest loop for track")
		old.cancel()
		if old.track != track {
			old.track.Close()
		}
	} else {
		m.sessions[sessionID]++
	}
	m.attached[sessionID] = struct{}{}
	m.loops[key] = l
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.TrackStarted()
	logger.Info().Msg("starting ingest loop")

	go func() {
		defer m.wg.Done()
		defer close(l.done)
		err := p.Run(loopCtx, track)
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("ingest loop cancelled")
		} else {
			logger.Info().Err(err).Msg("ingest loop ended")
		}
		m.finish(key, l, err)
	}()
	return nil
}

func (m *Manager) finish(key loopKey, l *ingestLoop, err error) {
	m.metrics.TrackStopped()

	m.mu.Lock()
	if cur, ok := m.loops[key]; !ok || cur != l {
		// Replaced by a newer loop for the same track.
		m.mu.Unlock()
		return
	}
	delete(m.loops, key)
	m.sessions[key.sessionID]--
	last := m.sessions[key.sessionID] == 0
	if last {
		delete(m.sessions, key.sessionID)
	}
	m.mu.Unlock()

	if last && m.sink != nil {
		m.sink.OnSessionEnded(key.sessionID, err)
	}
}

// EndSession reports that the media session is gone. Running loops are
// stopped and report the end themselves when the last one exits; a session
// that never had a loop is reported to the sink here.
func (m *Manager) EndSession(sessionID string, err error) {
	m.mu.Lock()
	_, hadLoops := m.attached[sessionID]
	delete(m.attached, sessionID)
	pending := m.stopLocked(sessionID)
	m.mu.Unlock()

	if !hadLoops && len(pending) == 0 && m.sink != nil {
		m.sink.OnSessionEnded(sessionID, err)
	}
}

// StopSession stops every loop of sessionID, closing its tracks, and waits
// for them to exit.
func (m *Manager) StopSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	pending := m.stopLocked(sessionID)
	m.mu.Unlock()

	for _, l := range pending {
		select {
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) stopLocked(sessionID string) []*ingestLoop {
	var pending []*ingestLoop
	for key, l := range m.loops {
		if key.sessionID == sessionID {
			l.stop()
			pending = append(pending, l)
		}
	}
	return pending
}

// StopAll stops every loop and waits until all have exited.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, l := range m.loops {
		l.stop()
	}
	m.attached = make(map[string]struct{})
	m.mu.Unlock()
	m.wg.Wait()
}

// Active is the number of running loops.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loops)
}
