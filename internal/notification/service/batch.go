package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/clock"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/notification/smscontext"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/zap"
)

var dailyEvents = []domain.EventType{
	domain.EventPaymentReminder,
	domain.EventAutoRenewNotice,
	domain.EventMoveoutDay,
}

// RunDaily sends the date-driven notifications due today for every active
// contract. Re-running on the same day is safe: the dedup key of each send is
// bound to the date the message is about.
func (s *Service) RunDaily(ctx context.Context, today time.Time, batchSize int) (domain.BatchResult, error) {
	today = clock.DateOf(today)
	if batchSize <= 0 {
		batchSize = 200
	}

	offsets := map[domain.EventType]int{}
	for _, event := range dailyEvents {
		tmpl, err := s.repo.FindActiveTemplate(ctx, s.db, event)
		if err != nil {
			return domain.BatchResult{}, db.Classify(err)
		}
		if tmpl != nil {
			offsets[event] = tmpl.ScheduleOffset
		}
	}

	var (
		res     domain.BatchResult
		errList []error
		afterID snowflake.ID
		rooms   = map[snowflake.ID]*roomdomain.Room{}
	)
	if len(offsets) == 0 {
		return res, nil
	}

	for {
		contracts, err := s.contracts.ListActive(ctx, s.db, afterID, batchSize)
		if err != nil {
			errList = append(errList, db.Classify(err))
			break
		}
		if len(contracts) == 0 {
			break
		}
		for i := range contracts {
			c := &contracts[i]
			afterID = c.ID
			res.Scanned++
			for _, job := range s.dueToday(ctx, c, today, offsets) {
				r, err := s.Send(ctx, s.dailyRequest(ctx, c, job, rooms))
				switch r.Status {
				case domain.ResultDelivered:
					res.Delivered++
				case domain.ResultSkipped:
					res.Skipped++
				default:
					res.Failed++
				}
				// delivery failures stay in sms_logs; only storage problems fail the run
				if err != nil && !errors.Is(err, errs.ErrNotification) {
					errList = append(errList, fmt.Errorf("contract %s %s: %w", c.ID, job.event, err))
				}
			}
		}
		if len(contracts) < batchSize {
			break
		}
	}

	s.log.Info("daily notifications processed",
		zap.Time("today", today),
		zap.Int("scanned", res.Scanned),
		zap.Int("delivered", res.Delivered),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, errors.Join(errList...)
}

type dailyJob struct {
	event  domain.EventType
	date   time.Time
	amount *int64
}

func (s *Service) dueToday(ctx context.Context, c *contractdomain.Contract, today time.Time, offsets map[domain.EventType]int) []dailyJob {
	var jobs []dailyJob

	if offset, ok := offsets[domain.EventPaymentReminder]; ok {
		target := today.AddDate(0, 0, offset)
		due := smscontext.DueDateIn(target, c.PaymentDay)
		inTerm := due.After(clock.DateOf(c.StartDate)) && (c.IsIndefinite || !due.After(c.EndDate))
		if due.Equal(target) && inTerm {
			job := dailyJob{event: domain.EventPaymentReminder, date: due}
			amount, err := s.pricing.MonthlyCharge(ctx, c.ID, c.Breakdown.Data(), due)
			if err != nil {
				s.log.Warn("monthly charge lookup failed, using contract price",
					zap.String("contract_id", c.ID.String()),
					zap.Error(err),
				)
				amount = c.Price
			}
			job.amount = &amount
			jobs = append(jobs, job)
		}
	}

	if offset, ok := offsets[domain.EventAutoRenewNotice]; ok && !c.IsIndefinite {
		if c.EndDate.AddDate(0, 0, -offset).Equal(today) {
			jobs = append(jobs, dailyJob{event: domain.EventAutoRenewNotice, date: c.EndDate})
		}
	}

	if _, ok := offsets[domain.EventMoveoutDay]; ok && !c.IsIndefinite && c.EndDate.Equal(today) {
		jobs = append(jobs, dailyJob{event: domain.EventMoveoutDay, date: today})
	}
	return jobs
}

func (s *Service) dailyRequest(ctx context.Context, c *contractdomain.Contract, job dailyJob, rooms map[snowflake.ID]*roomdomain.Room) domain.SendRequest {
	room, cached := rooms[c.RoomID]
	if !cached {
		if r, err := s.rooms.GetRoom(ctx, c.RoomID); err == nil {
			room = r
		}
		rooms[c.RoomID] = room
	}

	policy := s.policy.Get()
	due := job.date
	vars := smscontext.Build(smscontext.Input{
		Contract:        c,
		Room:            room,
		Event:           job.event,
		Today:           job.date,
		DefaultBranch:   s.cfg.SMS.DefaultBranchName,
		RenewNoticeDays: policy.RenewNoticeDay,
		RefundDelayDays: policy.RefundDelayDay,
		Amount:          job.amount,
		DueDate:         &due,
	})
	return domain.SendRequest{
		EventType:    job.event,
		ContractID:   c.ID,
		BusinessDate: job.date,
		Receiver:     c.TenantPhone,
		Vars:         vars,
	}
}
