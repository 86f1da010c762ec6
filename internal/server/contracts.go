package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
)

type quoteRequest struct {
	RoomID        snowflake.ID `json:"room_id"`
	Months        int          `json:"months"`
	Hours         int          `json:"hours"`
	CouponCode    string       `json:"coupon_code"`
	StartDate     string       `json:"start_date"`
	PaymentDay    int          `json:"payment_day"`
	PaymentMethod string       `json:"payment_method"`
}

func (r quoteRequest) toDomain() (pricingdomain.QuoteRequest, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return pricingdomain.QuoteRequest{}, newValidationError("start_date", "invalid_start_date", "start_date must be YYYY-MM-DD")
	}
	return pricingdomain.QuoteRequest{
		RoomID:        r.RoomID,
		Months:        r.Months,
		Hours:         r.Hours,
		CouponCode:    strings.TrimSpace(r.CouponCode),
		StartDate:     start,
		PaymentDay:    r.PaymentDay,
		PaymentMethod: pricingdomain.PaymentMethod(strings.ToLower(strings.TrimSpace(r.PaymentMethod))),
	}, nil
}

type couponSummary struct {
	Applied bool   `json:"applied"`
	Code    string `json:"code,omitempty"`
}

// QuoteContract prices a booking. An unusable coupon is dropped silently
// here; the contract form checks it through ValidateCoupon first.
func (s *Server) QuoteContract(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	quoteReq, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	quote, err := s.pricing.Quote(c.Request.Context(), quoteReq, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	coupon := couponSummary{Applied: quote.Resolution.Outcome == pricingdomain.CouponApplied}
	if coupon.Applied && quote.Resolution.Coupon != nil {
		coupon.Code = quote.Resolution.Coupon.Code
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"breakdown": quote.Breakdown,
		"coupon":    coupon,
	}})
}

type createContractRequest struct {
	quoteRequest
	IsIndefinite bool   `json:"is_indefinite"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	UserID       string `json:"user_id"`
	TenantName   string `json:"tenant_name"`
	TenantPhone  string `json:"tenant_phone"`
	TenantEmail  string `json:"tenant_email"`
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	quoteReq, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contract, err := s.contracts.Create(c.Request.Context(), contractdomain.CreateRequest{
		RoomID:        quoteReq.RoomID,
		Months:        quoteReq.Months,
		Hours:         quoteReq.Hours,
		StartDate:     quoteReq.StartDate,
		StartTime:     strings.TrimSpace(req.StartTime),
		EndTime:       strings.TrimSpace(req.EndTime),
		IsIndefinite:  req.IsIndefinite,
		PaymentDay:    quoteReq.PaymentDay,
		PaymentMethod: quoteReq.PaymentMethod,
		CouponCode:    quoteReq.CouponCode,
		UserID:        req.UserID,
		TenantName:    req.TenantName,
		TenantPhone:   req.TenantPhone,
		TenantEmail:   req.TenantEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": contract})
}

func (s *Server) GetContract(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	contract, err := s.contracts.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contract})
}

type terminationRequest struct {
	TerminationDate string `json:"termination_date"`
	Confirmed       bool   `json:"termination_confirmation_checked"`
	Reason          string `json:"reason"`
}

func (s *Server) RequestTermination(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req terminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	effective, err := parseOptionalDate(req.TerminationDate)
	if err != nil {
		AbortWithError(c, newValidationError("termination_date", "invalid_termination_date", "termination_date must be YYYY-MM-DD"))
		return
	}

	created, err := s.contracts.RequestTermination(c.Request.Context(), contractdomain.TerminationRequest{
		ContractID:    id,
		EffectiveDate: effective,
		Confirmed:     req.Confirmed,
		Reason:        req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) RequestExtension(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req contractdomain.ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ContractID = id

	created, err := s.contracts.RequestExtension(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

type listContractsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
	RoomID string `form:"room_id"`
	UserID string `form:"user_id"`
}

func (s *Server) ListContracts(c *gin.Context) {
	var query listContractsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	roomID, err := parseOptionalSnowflakeID(query.RoomID)
	if err != nil {
		AbortWithError(c, newValidationError("room_id", "invalid_room_id", "invalid room_id"))
		return
	}

	req := contractdomain.ListRequest{
		Pagination: query.Pagination,
		Status:     contractdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		UserID:     strings.TrimSpace(query.UserID),
	}
	if roomID != nil {
		req.RoomID = *roomID
	}

	resp, err := s.contracts.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Contracts, "page_info": resp.PageInfo})
}

func (s *Server) TransitionContractStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req contractdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ContractID = id
	req.Status = contractdomain.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))

	contract, err := s.contracts.TransitionStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contract})
}

func (s *Server) ListContractHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.history.List(c.Request.Context(), auditdomain.ListHistoryRequest{
		Pagination: page,
		ContractID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.History, "page_info": resp.PageInfo})
}

func (s *Server) ListContractRequests(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	requests, err := s.contracts.ListRequests(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requests})
}

func (s *Server) DecideRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req contractdomain.Decision
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.RequestID = id

	decided, err := s.contracts.DecideRequest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decided})
}

func (s *Server) ListUnmappedContracts(c *gin.Context) {
	contracts, err := s.contracts.ListUnmapped(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contracts})
}

type mapTenantRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) MapTenant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mapTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contract, err := s.contracts.MapTenant(c.Request.Context(), id, req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contract})
}

type autoMapRequest struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
}

func (s *Server) AutoMapTenant(c *gin.Context) {
	var req autoMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mapped, err := s.contracts.AutoMapTenant(c.Request.Context(), req.UserID, req.Phone, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"mapped": mapped}})
}
