package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eroom/internal/errs"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
)

func (s *Server) ListSMSTemplates(c *gin.Context) {
	templates, err := s.notifications.ListTemplates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (s *Server) UpdateSMSTemplate(c *gin.Context) {
	var req notificationdomain.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	eventType := notificationdomain.EventType(strings.ToUpper(strings.TrimSpace(c.Param("type"))))

	tmpl, err := s.notifications.UpdateTemplate(c.Request.Context(), eventType, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) PreviewSMS(c *gin.Context) {
	var req notificationdomain.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventType = notificationdomain.EventType(strings.ToUpper(strings.TrimSpace(string(req.EventType))))

	preview, err := s.notifications.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": preview})
}

// SendSMS always bypasses dedup. A provider failure is still a 200: the
// attempt is recorded in sms_logs and the result says FAILED.
func (s *Server) SendSMS(c *gin.Context) {
	var req notificationdomain.ManualSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventType = notificationdomain.EventType(strings.ToUpper(strings.TrimSpace(string(req.EventType))))

	res, err := s.notifications.SendManual(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrNotification) {
			c.JSON(http.StatusOK, gin.H{"data": res, "error": err.Error()})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

type listSMSLogsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Status     string `form:"status"`
	ContractID string `form:"contract_id"`
}

func (s *Server) ListSMSLogs(c *gin.Context) {
	var query listSMSLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	contractID, err := parseOptionalSnowflakeID(query.ContractID)
	if err != nil {
		AbortWithError(c, newValidationError("contract_id", "invalid_contract_id", "invalid contract_id"))
		return
	}

	req := notificationdomain.ListLogsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status: notificationdomain.LogStatus(query.Status),
	}
	if contractID != nil {
		req.ContractID = *contractID
	}

	resp, err := s.notifications.ListLogs(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Logs, "page_info": resp.PageInfo})
}
