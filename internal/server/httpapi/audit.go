package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

// auditFilterBody is the JSON form of an audit filter. Times are RFC 3339.
type auditFilterBody struct {
	EventType string    `json:"event_type"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id"`
	VaultID   string    `json:"vault_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Limit     int       `json:"limit"`
}

func (b auditFilterBody) filter() models.AuditFilter {
	return models.AuditFilter{
		EventType: models.EventType(b.EventType),
		ActorID:   b.ActorID,
		SubjectID: b.SubjectID,
		VaultID:   b.VaultID,
		From:      b.From,
		To:        b.To,
		Limit:     b.Limit,
	}
}

func parseTimeParam(c *gin.Context, name string) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		badRequest(c, name+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) queryAudit(c *gin.Context) {
	body := auditFilterBody{
		EventType: c.Query("event_type"),
		ActorID:   c.Query("actor_id"),
		SubjectID: c.Query("subject_id"),
		VaultID:   c.Query("vault_id"),
	}
	var ok bool
	if body.From, ok = parseTimeParam(c, "from"); !ok {
		return
	}
	if body.To, ok = parseTimeParam(c, "to"); !ok {
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		body.Limit = n
	}

	entries, err := s.svc.Audit.Query(c.Request.Context(), principal(c), body.filter())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) exportAudit(c *gin.Context) {
	var body auditFilterBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	location, err := s.svc.Audit.Export(c.Request.Context(), principal(c), body.filter())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}
