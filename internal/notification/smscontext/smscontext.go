// Package smscontext builds template variables for a contract notification.
package smscontext

import (
	"time"

	"github.com/smallbiznis/eroom/internal/clock"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

type Input struct {
	Contract *contractdomain.Contract
	Room     *roomdomain.Room
	Event    domain.EventType
	Today    time.Time

	DefaultBranch   string
	RenewNoticeDays int
	RefundDelayDays int

	// Amount overrides the contract price, e.g. after a custom discount.
	Amount *int64
	// DueDate overrides the payment date derived from Today.
	DueDate *time.Time
}

// Build returns the variables every event shares plus the ones its type needs.
func Build(in Input) map[string]string {
	c := in.Contract
	vars := map[string]string{
		"user_name":   c.TenantName,
		"user_phone":  c.TenantPhone,
		"branch_name": in.DefaultBranch,
		"room_name":   "N/A",
		"start_date":  formatDate(c.StartDate),
		"end_date":    formatDate(c.EndDate),
	}
	if in.Room != nil {
		vars["room_name"] = in.Room.Name
		if in.Room.BranchName != "" {
			vars["branch_name"] = in.Room.BranchName
		}
	}
	if c.IsIndefinite {
		delete(vars, "end_date")
	}

	switch in.Event {
	case domain.EventContractApproved:
		vars["due_date"] = formatDate(FirstDueDate(c))
	case domain.EventPaymentReminder, domain.EventPaymentOverdueStage1, domain.EventPaymentOverdueStage2:
		due := DueDateIn(in.Today, c.PaymentDay)
		if in.DueDate != nil {
			due = *in.DueDate
		}
		amount := c.Price
		if in.Amount != nil {
			amount = *in.Amount
		}
		vars["due_date"] = formatDate(due)
		vars["amount"] = FormatAmount(amount)
	case domain.EventAutoRenewNotice:
		if !c.IsIndefinite {
			vars["renew_deadline"] = formatDate(c.EndDate.AddDate(0, 0, -in.RenewNoticeDays))
		}
	case domain.EventMoveoutApplied:
		vars["moveout_date"] = formatDate(moveoutDate(c))
	case domain.EventMoveoutApproved:
		moveout := moveoutDate(c)
		vars["moveout_date"] = formatDate(moveout)
		vars["deposit_refund_date"] = formatDate(moveout.AddDate(0, 0, in.RefundDelayDays))
	}
	return vars
}

// Sample is the stand-in context used to preview templates without a contract.
func Sample() map[string]string {
	return map[string]string{
		"user_name":           "홍길동",
		"user_phone":          "01012345678",
		"branch_name":         "이룸 스튜디오",
		"room_name":           "301호",
		"start_date":          "2025-01-01",
		"end_date":            "2025-12-31",
		"due_date":            "2025-01-25",
		"amount":              "500,000",
		"renew_deadline":      "2025-12-01",
		"moveout_date":        "2025-12-31",
		"deposit_refund_date": "2026-01-03",
	}
}

// DueDateIn is the payment day within the month of today, clamped to the
// month's last day.
func DueDateIn(today time.Time, paymentDay int) time.Time {
	y, m, _ := today.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if paymentDay < 1 {
		paymentDay = 1
	}
	if paymentDay > last {
		paymentDay = last
	}
	return time.Date(y, m, paymentDay, 0, 0, 0, 0, time.UTC)
}

// FirstDueDate is the first payment day on or after the start date.
func FirstDueDate(c *contractdomain.Contract) time.Time {
	due := DueDateIn(c.StartDate, c.PaymentDay)
	if due.Before(clock.DateOf(c.StartDate)) {
		due = DueDateIn(clock.AddMonths(time.Date(c.StartDate.Year(), c.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC), 1), c.PaymentDay)
	}
	return due
}

var krw = message.NewPrinter(language.Korean)

// FormatAmount renders KRW with thousands separators: 1,234,000.
func FormatAmount(amount int64) string {
	return krw.Sprintf("%d", amount)
}

func moveoutDate(c *contractdomain.Contract) time.Time {
	if c.TerminationEffectiveDate != nil {
		return *c.TerminationEffectiveDate
	}
	return c.EndDate
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
