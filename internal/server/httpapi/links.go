package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// mintLinkBody names either an item to share or inline content, not both.
type mintLinkBody struct {
	ItemID  string `json:"item_id"`
	Content string `json:"content"`
}

func (s *Server) mintLink(c *gin.Context) {
	var body mintLinkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	var (
		link *services.MintedLink
		err  error
	)
	switch {
	case body.ItemID != "" && body.Content != "":
		badRequest(c, "item_id and content are mutually exclusive")
		return
	case body.ItemID != "":
		link, err = s.svc.Links.Mint(c.Request.Context(), principal(c), body.ItemID)
	default:
		link, err = s.svc.Links.MintInline(c.Request.Context(), principal(c), body.Content)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *Server) resolveLink(c *gin.Context) {
	res, err := s.svc.Links.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
