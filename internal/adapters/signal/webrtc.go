package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

var errBadSignalPayload = errors.New("bad signal payload")

// handleRelay forwards an offer/answer/candidate envelope to one peer.
// The payload is validated for shape, then relayed verbatim: this server
// never terminates media, it only coordinates the peers' negotiation.
func (ctl *Controller) handleRelay(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string          `json:"type"`
		SessionID string          `json:"session_id"`
		To        string          `json:"to"`
		Kind      string          `json:"kind"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.To == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if err := validateSignalPayload(p.Kind, p.Payload); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("kind", p.Kind).Msg("rejecting malformed signal")
		ctl.sendError(c, "bad_payload")
		return
	}
	err := ctl.Presence.RelaySignal(ctx, domain.SessionID(p.SessionID), uid, domain.UserID(p.To), p.Kind, p.Payload)
	if err != nil {
		ctl.sendCoreError(c, err)
	}
}

// validateSignalPayload checks that SDP and ICE envelopes at least parse
// as what they claim to be before being relayed to a peer.
func validateSignalPayload(kind string, payload json.RawMessage) error {
	switch kind {
	case "offer", "answer":
		var p struct {
			SDP string `json:"sdp"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.SDP == "" {
			return errBadSignalPayload
		}
		sd := webrtc.SessionDescription{Type: webrtc.NewSDPType(kind), SDP: p.SDP}
		if sd.Type == webrtc.SDPTypeUnknown {
			return errBadSignalPayload
		}
	case "candidate":
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &ci); err != nil || ci.Candidate == "" {
			return errBadSignalPayload
		}
	default:
		// Unknown kinds carry their own sequencing; pass through opaque.
	}
	return nil
}
