package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app/orch"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
)

type handlers struct {
	orch *orch.Orchestrator
	ice  []webrtc.ICEServer
}

// writeError maps domain errors to a status and a fixed message.
func writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPeerID),
		errors.Is(err, errBadRequest):
		status, msg = http.StatusBadRequest, "invalid_message"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrGenerationExhausted):
		status, msg = http.StatusServiceUnavailable, "exhausted"
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

var errBadRequest = errors.New("bad request")

func (h *handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": h.ice})
}

func (h *handlers) callInfo(c *gin.Context) {
	code, err := domain.ParseCallCode(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	st, err := h.orch.Status(c.Request.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// registerJoin remembers the call in the browser session when it can be joined.
func (h *handlers) registerJoin(c *gin.Context) {
	code, err := domain.ParseCallCode(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok := h.orch.RegisterJoin(c.Request.Context(), code)
	if ok {
		session := sessions.Default(c)
		session.Set("call_code", string(code))
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
		}
		log.Info().Str("module", "adapters.http").
			Str("client", c.GetString("client_token")).
			Str("code", string(code)).
			Msg("join registered")
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

type adminEndRequest struct {
	Code   string `json:"code" binding:"required"`
	Secret string `json:"secret"`
}

func (h *handlers) adminEnd(c *gin.Context) {
	var req adminEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest)
		return
	}
	code, err := domain.ParseCallCode(req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.orch.AdminEnd(c.Request.Context(), code, req.Secret); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// startTime accepts RFC3339 or Unix seconds. Absent means now.
type startTime struct {
	time.Time
	set bool
}

func (s *startTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err == nil {
		s.Time, s.set = time.Unix(secs, 0).UTC(), true
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	s.Time, s.set = t, true
	return nil
}

type createCallRequest struct {
	CreatorID       int64     `json:"creator_id" binding:"required"`
	StartTime       startTime `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=1440"`
}

type callView struct {
	*domain.CallRecord
	EndTime     time.Time    `json:"end_time"`
	Phase       domain.State `json:"phase"`
	MinutesLeft int          `json:"minutes_left"`
}

func (h *handlers) view(rec *domain.CallRecord) callView {
	now := h.orch.Registry.Now()
	return callView{
		CallRecord:  rec,
		EndTime:     rec.EndTime(),
		Phase:       rec.Phase(now),
		MinutesLeft: rec.MinutesLeft(now),
	}
}

func (h *handlers) createCall(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest)
		return
	}
	start := req.StartTime.Time
	if !req.StartTime.set {
		// whole second, so an immediate call is joinable right away
		start = h.orch.Registry.Now().Truncate(time.Second)
	}
	rec, err := h.orch.CreateCall(c.Request.Context(), req.CreatorID, start, req.DurationMinutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(rec))
}

func creatorParam(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Query("creator_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return id, nil
}

func (h *handlers) listCalls(c *gin.Context) {
	creator, err := creatorParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	recs, err := h.orch.ListCalls(c.Request.Context(), creator)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]callView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.view(rec))
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h *handlers) deleteCall(c *gin.Context) {
	creator, err := creatorParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.orch.DeleteCall(c.Request.Context(), domain.CallID(c.Param("id")), creator)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(rec))
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}
