package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/app"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// Handlers exposes the coordination services over REST. The acting user
// is always the client-token cookie; there is no separate auth layer.
type Handlers struct {
	Store     store.DataStore
	Lifecycle *app.Lifecycle
	Admission *app.Admission
	Relay     *app.Relay
	Presence  *app.Broker
}

func actor(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString("client_token"))
}

func sid(c *gin.Context) domain.SessionID {
	return domain.SessionID(c.Param("id"))
}

func abortErr(c *gin.Context, err error) {
	log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(errStatus(err), gin.H{"error": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrCannotRemoveCreator),
		errors.Is(err, domain.ErrCreatorCannotLeave):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotInvited),
		errors.Is(err, domain.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSessionFull),
		errors.Is(err, domain.ErrSessionNotJoinable),
		errors.Is(err, domain.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTitleEmpty),
		errors.Is(err, domain.ErrTitleTooLong),
		errors.Is(err, domain.ErrDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidParticipants),
		errors.Is(err, domain.ErrNameEmpty),
		errors.Is(err, domain.ErrNameTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) RegisterUser(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := domain.NewUser(actor(c), req.Name)
	if err != nil {
		abortErr(c, err)
		return
	}
	if err := h.Store.UpsertUser(c.Request.Context(), u); err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handlers) CurrentUser(c *gin.Context) {
	u, err := h.Store.GetUser(c.Request.Context(), actor(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		Title               string `json:"title" binding:"required"`
		Description         string `json:"description"`
		Mode                string `json:"mode" binding:"required,oneof=text audio"`
		MaxParticipants     int    `json:"max_participants" binding:"required"`
		IsPrivate           bool   `json:"is_private"`
		RequiresApproval    bool   `json:"requires_approval"`
		AllowJoinAfterStart bool   `json:"allow_join_after_start"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Lifecycle.Create(c.Request.Context(), actor(c), domain.SessionParams{
		Title:               req.Title,
		Description:         req.Description,
		Mode:                domain.Mode(req.Mode),
		MaxParticipants:     req.MaxParticipants,
		IsPrivate:           req.IsPrivate,
		RequiresApproval:    req.RequiresApproval,
		AllowJoinAfterStart: req.AllowJoinAfterStart,
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handlers) ListSessions(c *gin.Context) {
	list, err := h.Lifecycle.List(c.Request.Context())
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.Lifecycle.Get(c.Request.Context(), sid(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.Lifecycle.Delete(c.Request.Context(), sid(c), actor(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) StartSession(c *gin.Context) {
	if err := h.Lifecycle.Start(c.Request.Context(), sid(c), actor(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) EndSession(c *gin.Context) {
	if err := h.Lifecycle.End(c.Request.Context(), sid(c), actor(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Join(c *gin.Context) {
	m, err := h.Admission.RequestJoin(c.Request.Context(), sid(c), actor(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) Leave(c *gin.Context) {
	if err := h.Admission.Leave(c.Request.Context(), sid(c), actor(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Withdraw(c *gin.Context) {
	if err := h.Admission.Withdraw(c.Request.Context(), sid(c), actor(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListMembers(c *gin.Context) {
	status := domain.MemberStatus(c.DefaultQuery("status", string(domain.StatusActive)))
	if !status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	members, err := h.Admission.ListMembers(c.Request.Context(), sid(c), status)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func target(c *gin.Context) domain.UserID {
	return domain.UserID(c.Param("uid"))
}

func (h *Handlers) Invite(c *gin.Context) {
	m, err := h.Admission.Invite(c.Request.Context(), sid(c), actor(c), target(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) Approve(c *gin.Context) {
	m, err := h.Admission.Approve(c.Request.Context(), sid(c), actor(c), target(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) Reject(c *gin.Context) {
	if err := h.Admission.Reject(c.Request.Context(), sid(c), actor(c), target(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ReAdd(c *gin.Context) {
	m, err := h.Admission.ReAdd(c.Request.Context(), sid(c), actor(c), target(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) RemoveMember(c *gin.Context) {
	if err := h.Admission.RemoveParticipant(c.Request.Context(), sid(c), actor(c), target(c)); err != nil {
		abortErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) SendMessage(c *gin.Context) {
	var req struct {
		Type    string `json:"type" binding:"required,oneof=text audio"`
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.Relay.Send(c.Request.Context(), sid(c), actor(c), domain.MessageType(req.Type), req.Payload)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handlers) ListMessages(c *gin.Context) {
	msgs, err := h.Relay.ListMessages(c.Request.Context(), sid(c), actor(c))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handlers) Roster(c *gin.Context) {
	c.JSON(http.StatusOK, h.Presence.Roster(sid(c)))
}
