package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) createVault(c *gin.Context) {
	var in services.VaultInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	v, err := s.svc.Vaults.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Server) getVault(c *gin.Context) {
	v, err := s.svc.Vaults.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) createItem(c *gin.Context) {
	var in services.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	it, err := s.svc.Items.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (s *Server) getItem(c *gin.Context) {
	v, err := s.svc.Items.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) listKinds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kinds": s.svc.Items.Kinds()})
}

func (s *Server) getKind(c *gin.Context) {
	schema, err := s.svc.Items.Schema(c.Param("kind"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) checkout(c *gin.Context) {
	lock, err := s.svc.Checkout.Checkout(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lock)
}

func (s *Server) checkin(c *gin.Context) {
	if err := s.svc.Checkout.Checkin(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "checked_in"})
}

func (s *Server) checkoutStatus(c *gin.Context) {
	lock, err := s.svc.Checkout.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checked_out": lock != nil, "lock": lock})
}

func (s *Server) reveal(c *gin.Context) {
	res, err := s.svc.Reveal.Reveal(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
