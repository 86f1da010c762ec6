package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/notification/smscontext"
	"github.com/smallbiznis/eroom/internal/providers/pdf"
)

var requestStatusLabels = map[contractdomain.RequestStatus]string{
	contractdomain.RequestStatusPending:   "검토 중",
	contractdomain.RequestStatusApproved:  "승인",
	contractdomain.RequestStatusRejected:  "반려",
	contractdomain.RequestStatusDone:      "처리 완료",
	contractdomain.RequestStatusCancelled: "취소",
}

// RenderTerminationNotice streams the move-out confirmation of a contract
// with a termination request as a PDF download.
func (s *Server) RenderTerminationNotice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	notice, err := s.contracts.TerminationNotice(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	data := noticeData(notice)

	out, err := s.pdf.TerminationNotice(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, pdf.FileName(data)))
	c.Data(http.StatusOK, "application/pdf", out)
}

func noticeData(n *contractdomain.TerminationNotice) pdf.NoticeData {
	ct := n.Contract
	data := pdf.NoticeData{
		ContractNumber: ct.ID.String(),
		Branch:         n.Branch,
		RoomName:       n.RoomName,
		TenantName:     ct.TenantName,
		TenantPhone:    ct.TenantPhone,
		Period:         formatDate(ct.StartDate) + " ~ " + formatEndDate(ct),
		RequestedOn:    formatOptionalDate(ct.TerminationRequestedAt),
		EffectiveOn:    formatOptionalDate(ct.TerminationEffectiveDate),
		Remaining:      "-",
		Penalty:        "-",
		Status:         "-",
		IssuedOn:       formatDate(n.IssuedOn),
	}
	if ct.RemainingMonths != nil {
		data.Remaining = strconv.Itoa(*ct.RemainingMonths) + "개월"
	}
	if ct.PenaltyAmount != nil {
		data.Penalty = smscontext.FormatAmount(*ct.PenaltyAmount) + "원"
	}
	if ct.TerminationNotice != nil {
		data.Statement = *ct.TerminationNotice
	}
	if n.Request != nil {
		if label, ok := requestStatusLabels[n.Request.Status]; ok {
			data.Status = label
		}
		details := n.Request.Details.Data()
		data.Reason = details.Note
		if data.Statement == "" {
			data.Statement = details.ConfirmationText
		}
	}
	return data
}

func formatDate(t time.Time) string {
	return t.Format(dateOnlyLayout)
}

func formatEndDate(ct contractdomain.Contract) string {
	if ct.IsIndefinite {
		return "무기한"
	}
	return formatDate(ct.EndDate)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}
