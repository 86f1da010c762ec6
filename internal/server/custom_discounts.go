package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customdiscountdomain "github.com/smallbiznis/eroom/internal/customdiscount/domain"
)

func (s *Server) ListCustomDiscounts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := s.discounts.List(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type upsertDiscountRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// UpsertCustomDiscount sets the discount of one month, replacing any earlier
// value for the same month.
func (s *Server) UpsertCustomDiscount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req upsertDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	discount, err := s.discounts.Upsert(c.Request.Context(), customdiscountdomain.UpsertRequest{
		ContractID: id,
		Month:      strings.TrimSpace(c.Param("month")),
		Amount:     req.Amount,
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": discount})
}

func (s *Server) DeleteCustomDiscount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.discounts.Delete(c.Request.Context(), id, strings.TrimSpace(c.Param("month"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
