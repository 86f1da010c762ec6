package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
)

type validateCouponResponse struct {
	Valid     bool                     `json:"valid"`
	Code      string                   `json:"code"`
	Reason    string                   `json:"reason,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Breakdown *pricingdomain.Breakdown `json:"breakdown,omitempty"`
}

// ValidateCoupon runs a strict quote so the tenant sees why a code does not
// apply before submitting the contract.
func (s *Server) ValidateCoupon(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.CouponCode) == "" {
		AbortWithError(c, newValidationError("coupon_code", "required", "coupon_code is required"))
		return
	}
	quoteReq, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := validateCouponResponse{Code: strings.ToUpper(quoteReq.CouponCode)}
	quote, err := s.pricing.Quote(c.Request.Context(), quoteReq, true)
	if err != nil {
		if !errors.Is(err, errs.ErrBusinessRule) {
			AbortWithError(c, err)
			return
		}
		resp.Reason = errs.Reason(err)
		resp.Error = domainCode(err)
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	resp.Valid = true
	resp.Breakdown = &quote.Breakdown
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCoupons(c *gin.Context) {
	coupons, err := s.coupons.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coupons})
}

func (s *Server) GetCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	coupon, err := s.coupons.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coupon})
}

type createCouponRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	Cycle         string `json:"discount_cycle"`
	StackPolicy   string `json:"stack_policy"`
	ValidFrom     string `json:"valid_from"`
	ValidUntil    string `json:"valid_until"`
	MinMonths     *int   `json:"min_months"`
	UsageLimit    *int   `json:"usage_limit"`
	IsActive      *bool  `json:"is_active"`
}

func (s *Server) CreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	validFrom, err := parseDate(req.ValidFrom)
	if err != nil {
		AbortWithError(c, newValidationError("valid_from", "invalid_valid_from", "valid_from must be YYYY-MM-DD"))
		return
	}
	validUntil, err := parseDate(req.ValidUntil)
	if err != nil {
		AbortWithError(c, newValidationError("valid_until", "invalid_valid_until", "valid_until must be YYYY-MM-DD"))
		return
	}

	coupon, err := s.coupons.Create(c.Request.Context(), coupondomain.CreateRequest{
		Code:          req.Code,
		Name:          req.Name,
		DiscountType:  coupondomain.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		DiscountValue: req.DiscountValue,
		Cycle:         coupondomain.Cycle(strings.ToLower(strings.TrimSpace(req.Cycle))),
		StackPolicy:   coupondomain.StackPolicy(strings.ToUpper(strings.TrimSpace(req.StackPolicy))),
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		MinMonths:     req.MinMonths,
		UsageLimit:    req.UsageLimit,
		IsActive:      req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": coupon})
}

type setCouponActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) SetCouponActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setCouponActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, newValidationError("is_active", "required", "is_active is required"))
		return
	}

	coupon, err := s.coupons.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coupon})
}

// DeleteCoupon refuses coupons that were already redeemed; deactivate those instead.
func (s *Server) DeleteCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.coupons.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
