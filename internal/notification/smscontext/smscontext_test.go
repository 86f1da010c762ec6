package smscontext

import (
	"testing"
	"time"

	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleContract() *contractdomain.Contract {
	return &contractdomain.Contract{
		TenantName:  "김이룸",
		TenantPhone: "01012345678",
		StartDate:   date(2025, time.September, 10),
		EndDate:     date(2026, time.September, 10),
		Price:       450000,
		PaymentDay:  5,
	}
}

func TestBuild_SharedVariables(t *testing.T) {
	vars := Build(Input{
		Contract:      sampleContract(),
		Event:         domain.EventContractApplied,
		DefaultBranch: "이룸 스튜디오",
	})

	assert.Equal(t, map[string]string{
		"user_name":   "김이룸",
		"user_phone":  "01012345678",
		"branch_name": "이룸 스튜디오",
		"room_name":   "N/A",
		"start_date":  "2025-09-10",
		"end_date":    "2026-09-10",
	}, vars)
}

func TestBuild_RoomOverridesBranch(t *testing.T) {
	vars := Build(Input{
		Contract:      sampleContract(),
		Room:          &roomdomain.Room{Name: "301", BranchName: "강남점"},
		Event:         domain.EventContractApplied,
		DefaultBranch: "이룸 스튜디오",
	})
	assert.Equal(t, "301", vars["room_name"])
	assert.Equal(t, "강남점", vars["branch_name"])
}

func TestBuild_IndefiniteOmitsEndDate(t *testing.T) {
	c := sampleContract()
	c.IsIndefinite = true
	c.EndDate = contractdomain.IndefiniteEndDate

	vars := Build(Input{Contract: c, Event: domain.EventAutoRenewNotice, RenewNoticeDays: 30})
	assert.NotContains(t, vars, "end_date")
	assert.NotContains(t, vars, "renew_deadline")
}

func TestBuild_EventVariables(t *testing.T) {
	c := sampleContract()
	moveout := date(2025, time.October, 31)

	approved := Build(Input{Contract: c, Event: domain.EventContractApproved})
	assert.Equal(t, "2025-10-05", approved["due_date"])

	reminder := Build(Input{Contract: c, Event: domain.EventPaymentReminder, Today: date(2025, time.November, 2)})
	assert.Equal(t, "2025-11-05", reminder["due_date"])
	assert.Equal(t, "450,000", reminder["amount"])

	discounted := int64(400000)
	overdue := Build(Input{Contract: c, Event: domain.EventPaymentOverdueStage1, Today: date(2025, time.November, 8), Amount: &discounted})
	assert.Equal(t, "400,000", overdue["amount"])

	renew := Build(Input{Contract: c, Event: domain.EventAutoRenewNotice, RenewNoticeDays: 30})
	assert.Equal(t, "2026-08-11", renew["renew_deadline"])

	c.TerminationEffectiveDate = &moveout
	applied := Build(Input{Contract: c, Event: domain.EventMoveoutApplied})
	assert.Equal(t, "2025-10-31", applied["moveout_date"])

	approvedOut := Build(Input{Contract: c, Event: domain.EventMoveoutApproved, RefundDelayDays: 3})
	assert.Equal(t, "2025-10-31", approvedOut["moveout_date"])
	assert.Equal(t, "2025-11-03", approvedOut["deposit_refund_date"])
}

func TestDueDateIn_ClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, date(2026, time.February, 28), DueDateIn(date(2026, time.February, 10), 31))
	assert.Equal(t, date(2025, time.September, 1), DueDateIn(date(2025, time.September, 20), 0))
}

func TestFirstDueDate(t *testing.T) {
	c := sampleContract()
	assert.Equal(t, date(2025, time.October, 5), FirstDueDate(c))

	c.PaymentDay = 15
	assert.Equal(t, date(2025, time.September, 15), FirstDueDate(c))

	c.StartDate = date(2026, time.January, 31)
	c.PaymentDay = 30
	assert.Equal(t, date(2026, time.February, 28), FirstDueDate(c))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "999", FormatAmount(999))
	assert.Equal(t, "1,000", FormatAmount(1000))
	assert.Equal(t, "1,234,567", FormatAmount(1234567))
	assert.Equal(t, "-50,000", FormatAmount(-50000))
}
