package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type SessionID string

// Mode selects the session transport: plain text chat or a live audio call.
type Mode string

const (
	ModeText  Mode = "text"
	ModeAudio Mode = "audio"
)

func (m Mode) Valid() bool { return m == ModeText || m == ModeAudio }

// SessionState is the linear lifecycle Scheduled -> Active -> Ended.
// Ended is terminal.
type SessionState string

const (
	StateScheduled SessionState = "scheduled"
	StateActive    SessionState = "active"
	StateEnded     SessionState = "ended"
)

const (
	MinParticipants = 2
	MaxParticipants = 50

	MaxTitleLen       = 128
	MaxDescriptionLen = 512
)

var (
	ErrTitleEmpty          = errors.New("session title must not be empty")
	ErrTitleTooLong        = errors.New("session title too long")
	ErrDescriptionTooLong  = errors.New("session description too long")
	ErrInvalidMode         = errors.New("session mode must be text or audio")
	ErrInvalidParticipants = errors.New("max participants out of range")
)

// Session is a bounded group conversation with one creator.
// MaxParticipants is fixed at creation.
type Session struct {
	ID                  SessionID    `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Mode                Mode         `json:"mode"`
	MaxParticipants     int          `json:"max_participants"`
	IsPrivate           bool         `json:"is_private"`
	RequiresApproval    bool         `json:"requires_approval"`
	AllowJoinAfterStart bool         `json:"allow_join_after_start"`
	State               SessionState `json:"state"`
	CreatorID           UserID       `json:"creator_id"`
	CreatedAt           time.Time    `json:"created_at"`
	StartedAt           time.Time    `json:"started_at,omitempty"`
	EndedAt             time.Time    `json:"ended_at,omitempty"`
}

// SessionParams carries the creation attributes supplied by the caller.
type SessionParams struct {
	Title               string
	Description         string
	Mode                Mode
	MaxParticipants     int
	IsPrivate           bool
	RequiresApproval    bool
	AllowJoinAfterStart bool
}

// NewSession validates params and returns a Scheduled session owned by creator.
func NewSession(creator UserID, p SessionParams) (*Session, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrTitleEmpty
	}
	if utf8.RuneCountInString(p.Title) > MaxTitleLen {
		return nil, ErrTitleTooLong
	}
	if utf8.RuneCountInString(p.Description) > MaxDescriptionLen {
		return nil, ErrDescriptionTooLong
	}
	if !p.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	if p.MaxParticipants < MinParticipants || p.MaxParticipants > MaxParticipants {
		return nil, ErrInvalidParticipants
	}
	return &Session{
		ID:                  SessionID(uuid.NewString()),
		Title:               p.Title,
		Description:         p.Description,
		Mode:                p.Mode,
		MaxParticipants:     p.MaxParticipants,
		IsPrivate:           p.IsPrivate,
		RequiresApproval:    p.RequiresApproval,
		AllowJoinAfterStart: p.AllowJoinAfterStart,
		State:               StateScheduled,
		CreatorID:           creator,
		CreatedAt:           time.Now().UTC(),
	}, nil
}
