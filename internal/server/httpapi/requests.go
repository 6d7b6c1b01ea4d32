package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/breakglass"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/gin-gonic/gin"
)

type jitRequestBody struct {
	ItemID        string `json:"item_id"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"duration_hours"`
}

type breakGlassRequestBody struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

type revokeBody struct {
	Reason string `json:"reason"`
}

func (s *Server) requestJIT(c *gin.Context) {
	var body jitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if body.ItemID == "" {
		badRequest(c, "item_id is required")
		return
	}
	req, err := s.svc.JIT.Request(c.Request.Context(), principal(c), body.ItemID, body.Reason, body.DurationHours)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Server) listJIT(c *gin.Context) {
	f := jit.Filter{
		RequesterID: c.Query("requester_id"),
		ItemID:      c.Query("item_id"),
		Status:      models.JITStatus(c.Query("status")),
	}
	reqs, err := s.svc.JIT.List(c.Request.Context(), principal(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (s *Server) getJIT(c *gin.Context) {
	req, err := s.svc.JIT.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) approveJIT(c *gin.Context) {
	req, err := s.svc.JIT.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) denyJIT(c *gin.Context) {
	req, err := s.svc.JIT.Deny(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) requestBreakGlass(c *gin.Context) {
	var body breakGlassRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if body.ItemID == "" {
		badRequest(c, "item_id is required")
		return
	}
	res, err := s.svc.BreakGlass.Request(c.Request.Context(), principal(c), body.ItemID, body.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) listBreakGlass(c *gin.Context) {
	f := breakglass.Filter{
		RequesterID: c.Query("requester_id"),
		ItemID:      c.Query("item_id"),
		Status:      models.BreakGlassStatus(c.Query("status")),
	}
	reqs, err := s.svc.BreakGlass.List(c.Request.Context(), principal(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (s *Server) getBreakGlass(c *gin.Context) {
	req, err := s.svc.BreakGlass.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) approveBreakGlass(c *gin.Context) {
	res, err := s.svc.BreakGlass.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) revokeBreakGlass(c *gin.Context) {
	var body revokeBody
	// the reason is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	res, err := s.svc.BreakGlass.Revoke(c.Request.Context(), principal(c), c.Param("id"), body.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
