package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type EnvelopeType string

const (
	TypeJoin   EnvelopeType = "join"
	TypeSignal EnvelopeType = "signal"
	TypeLeave  EnvelopeType = "leave"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is one signaling message. The concrete type is one of
// Join, Signal, Leave or Unknown.
type Envelope interface {
	Kind() EnvelopeType
}

type Join struct {
	ID PeerID
}

// Signal is relayed to To without being re-encoded; Raw keeps the bytes
// exactly as the sender wrote them.
type Signal struct {
	From PeerID
	To   PeerID
	Data json.RawMessage
	Raw  []byte
}

// Leave carries the id the sender asked to drop, which may be empty.
type Leave struct {
	ID PeerID
}

type Unknown struct {
	Type string
}

func (Join) Kind() EnvelopeType      { return TypeJoin }
func (Signal) Kind() EnvelopeType    { return TypeSignal }
func (Leave) Kind() EnvelopeType     { return TypeLeave }
func (u Unknown) Kind() EnvelopeType { return EnvelopeType(u.Type) }

type wireEnvelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	From string          `json:"from,omitempty"`
	To   string          `json:"to,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope decodes one wire message. Every error wraps ErrMalformedEnvelope.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch EnvelopeType(w.Type) {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	case TypeJoin:
		id, err := ParsePeerID(w.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: join: %w", ErrMalformedEnvelope, err)
		}
		return Join{ID: id}, nil
	case TypeSignal:
		to, err := ParsePeerID(w.To)
		if err != nil {
			return nil, fmt.Errorf("%w: signal to: %w", ErrMalformedEnvelope, err)
		}
		return Signal{
			From: PeerID(w.From),
			To:   to,
			Data: w.Data,
			Raw:  append([]byte(nil), raw...),
		}, nil
	case TypeLeave:
		return Leave{ID: PeerID(w.ID)}, nil
	default:
		return Unknown{Type: w.Type}, nil
	}
}

// MarshalEnvelope encodes e for the wire. A Signal parsed off the wire is
// returned byte for byte.
func MarshalEnvelope(e Envelope) ([]byte, error) {
	switch v := e.(type) {
	case Join:
		return json.Marshal(wireEnvelope{Type: string(TypeJoin), ID: string(v.ID)})
	case Signal:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
		return json.Marshal(wireEnvelope{
			Type: string(TypeSignal),
			From: string(v.From),
			To:   string(v.To),
			Data: v.Data,
		})
	case Leave:
		return json.Marshal(wireEnvelope{Type: string(TypeLeave), ID: string(v.ID)})
	case Unknown:
		return nil, fmt.Errorf("cannot marshal unknown envelope type %q", v.Type)
	default:
		return nil, fmt.Errorf("cannot marshal envelope %T", e)
	}
}

// SignalData is the usual payload of a Signal: an SDP or one ICE candidate.
type SignalData struct {
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (s Signal) Payload() (SignalData, error) {
	var d SignalData
	if len(s.Data) == 0 {
		return d, fmt.Errorf("%w: signal without data", ErrMalformedEnvelope)
	}
	if err := json.Unmarshal(s.Data, &d); err != nil {
		return d, fmt.Errorf("%w: signal data: %v", ErrMalformedEnvelope, err)
	}
	return d, nil
}

// NewSignal builds an outbound Signal with data encoded as JSON.
func NewSignal(from, to PeerID, data SignalData) (Signal, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Signal{}, err
	}
	return Signal{From: from, To: to, Data: b}, nil
}
