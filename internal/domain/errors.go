package domain

import "errors"

// Errors surfaced to callers of the coordination core. Handlers map these
// to transport-level responses; nothing else crosses the API boundary.
var (
	ErrSessionNotJoinable  = errors.New("session is not joinable")
	ErrNotInvited          = errors.New("user is not invited to this private session")
	ErrSessionFull         = errors.New("session has reached max participants")
	ErrForbidden           = errors.New("operation requires the session creator")
	ErrCannotRemoveCreator = errors.New("the session creator cannot be removed")
	ErrCreatorCannotLeave  = errors.New("the session creator cannot leave")
	ErrSessionEnded        = errors.New("session has ended")
	ErrNotAMember          = errors.New("user is not an active member of this session")
	ErrNotConnected        = errors.New("user is not connected to the audio channel")
	ErrTransportTimeout    = errors.New("signaling transport timed out")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConflict            = errors.New("illegal state transition")
	ErrNotFound            = errors.New("not found")
)
