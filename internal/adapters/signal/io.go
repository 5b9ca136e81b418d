package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, uid domain.UserID, c *WsSignalConn, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump closing")
		// A dropped transport is treated exactly like an explicit leave.
		if sid := c.audioSession(); sid != "" {
			ctl.Presence.Disconnected(sid, uid)
		}
		ctl.Hub.Unbind(uid, c)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(ctx, uid, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join_audio":
		ctl.handleJoinAudio(ctx, uid, c, data)
	case "leave_audio":
		ctl.handleLeaveAudio(ctx, uid, c, data)
	case "mute":
		ctl.handleMute(ctx, uid, c, data)
	case "signal":
		ctl.handleRelay(ctx, uid, c, data)
	case "subscribe":
		ctl.handleSubscribe(ctx, uid, c, data)
	case "unsubscribe":
		ctl.handleUnsubscribe(uid, c, data)
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) handleJoinAudio(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(uid) {
		ctl.sendError(c, "rate_limited")
		return
	}
	sid := domain.SessionID(p.SessionID)

	// One live call per connection; joining another drops the previous.
	if prev := c.audioSession(); prev != "" && prev != sid {
		ctl.Presence.Disconnected(prev, uid)
		c.setAudioSession("")
	}

	if _, err := ctl.Presence.JoinAudio(ctx, sid, uid, c); err != nil {
		ctl.sendCoreError(c, err)
		return
	}
	// The roster ack frame was already delivered by the broker.
	c.setAudioSession(sid)
}

func (ctl *Controller) handleLeaveAudio(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	sid := domain.SessionID(p.SessionID)
	if err := ctl.Presence.LeaveAudio(ctx, sid, uid); err != nil {
		ctl.sendCoreError(c, err)
		return
	}
	if c.audioSession() == sid {
		c.setAudioSession("")
	}
	ctl.sendJSON(c, map[string]any{"type": "left_audio", "session_id": p.SessionID})
}

func (ctl *Controller) handleMute(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		Muted     bool   `json:"muted"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	entry, err := ctl.Presence.SetMuted(ctx, domain.SessionID(p.SessionID), uid, p.Muted)
	if err != nil {
		ctl.sendCoreError(c, err)
		return
	}
	ctl.sendJSON(c, core.PresenceEvent{
		Type:      core.EventParticipantMuted,
		SessionID: domain.SessionID(p.SessionID),
		UserID:    uid,
		Name:      entry.Name,
		Muted:     entry.Muted,
	})
}

func (ctl *Controller) handleSubscribe(ctx context.Context, uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	sid := domain.SessionID(p.SessionID)
	// Only active members may watch the live feed.
	if _, err := ctl.Relay.ListMessages(ctx, sid, uid); err != nil {
		ctl.sendCoreError(c, err)
		return
	}
	ctl.Hub.Subscribe(sid, uid)
	ctl.sendJSON(c, map[string]any{"type": "subscribed", "session_id": p.SessionID})
}

func (ctl *Controller) handleUnsubscribe(uid domain.UserID, c *WsSignalConn, data []byte) {
	var p struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Hub.Unsubscribe(domain.SessionID(p.SessionID), uid)
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsSignalConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

func (ctl *Controller) sendCoreError(c *WsSignalConn, err error) {
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		ctl.sendError(c, "not_connected")
	case errors.Is(err, domain.ErrNotAMember):
		ctl.sendError(c, "not_a_member")
	case errors.Is(err, domain.ErrSessionEnded):
		ctl.sendError(c, "session_ended")
	case errors.Is(err, domain.ErrSessionNotJoinable):
		ctl.sendError(c, "session_not_joinable")
	case errors.Is(err, domain.ErrTransportTimeout):
		ctl.sendError(c, "transport_timeout")
	case errors.Is(err, domain.ErrStorageUnavailable):
		ctl.sendError(c, "storage_unavailable")
	default:
		ctl.sendError(c, "internal")
	}
}
