// Package bridge delivers speech events to whatever consumes utterances.
package bridge

import (
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// LogSink logs every event.
type LogSink struct{}

func (LogSink) OnSpeechEvent(e domain.SpeechEvent) {
	log.Info().
		Str("module", "bridge").
		Str("session_id", e.SessionID).
		Stringer("event", e.Type).
		Int("frame", e.Frame).
		Dur("offset", e.Offset).
		Int("samples", len(e.Audio)).
		Msg("speech event")
}

func (LogSink) OnSessionEnded(sessionID string, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("module", "bridge").Str("session_id", sessionID).Msg("ingestion ended")
}

// MultiSink fans every call out to each sink in order.
type MultiSink []core.EventSink

func (m MultiSink) OnSpeechEvent(e domain.SpeechEvent) {
	for _, s := range m {
		s.OnSpeechEvent(e)
	}
}

func (m MultiSink) OnSessionEnded(sessionID string, err error) {
	for _, s := range m {
		s.OnSessionEnded(sessionID, err)
	}
}
