package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/notification/smscontext"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// transition is the outcome of applying a requested status inside a locked
// transaction. events are sent after commit.
type transition struct {
	old       domain.Status
	effective domain.Status
	events    []notificationdomain.EventType
}

var roomStatusFor = map[domain.Status]roomdomain.RoomStatus{
	domain.StatusActive:             roomdomain.RoomStatusOccupied,
	domain.StatusApproved:           roomdomain.RoomStatusReserved,
	domain.StatusTerminateRequested: roomdomain.RoomStatusOccupied,
	domain.StatusTerminated:         roomdomain.RoomStatusAvailable,
	domain.StatusCancelled:          roomdomain.RoomStatusAvailable,
}

func (s *Service) TransitionStatus(ctx context.Context, req domain.TransitionRequest) (*domain.Contract, error) {
	target := domain.Status(strings.TrimSpace(string(req.Status)))
	if target == "" {
		return nil, errs.Validation(domain.ErrStatusRequired)
	}
	if !target.Valid() {
		return nil, errs.Validation(domain.ErrInvalidStatus)
	}

	var (
		contract *domain.Contract
		result   transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contract, err = s.lockContract(ctx, tx, req.ContractID)
		if err != nil {
			return err
		}
		result, err = s.apply(ctx, tx, contract, target, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, contract, result)
	return contract, nil
}

func (s *Service) lockContract(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	contract, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, db.Classify(err)
	}
	if contract == nil {
		return nil, errs.NotFound(domain.ErrContractNotFound)
	}
	if contract.Status.Terminal() {
		return nil, errs.BusinessRule(domain.ErrTerminalStatus, "종료된 계약은 상태를 변경할 수 없습니다.")
	}
	return contract, nil
}

// apply moves a locked contract towards target and writes exactly one history
// row for the status it ends up in. A termination whose date is still ahead
// keeps the contract active until the expiry sweep picks it up.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, c *domain.Contract, target domain.Status, reason string) (transition, error) {
	return s.applyStatus(ctx, tx, c, target, reason, true)
}

// applyStatus is apply with control over the termination date check. The
// expiry sweep passes allowDefer=false: an end date in the past is final.
func (s *Service) applyStatus(ctx context.Context, tx *gorm.DB, c *domain.Contract, target domain.Status, reason string, allowDefer bool) (transition, error) {
	today := clock.Today(s.clock)
	out := transition{old: c.Status, effective: target}

	deferred := false
	if target == domain.StatusTerminated && allowDefer {
		if due := c.TerminationTarget(); due != nil && due.After(today) {
			deferred = true
			out.effective = domain.StatusActive
			c.IsIndefinite = false
			c.EndDate = *due
			if err := s.closeTerminationRequests(ctx, tx, c.ID, domain.RequestStatusDone, "해지 승인 완료"); err != nil {
				return out, err
			}
		}
	}

	if out.effective == domain.StatusTerminateRequested && out.old != domain.StatusTerminateRequested {
		s.snapshotTermination(c, today)
	}
	withdrawn := out.old == domain.StatusTerminateRequested && out.effective == domain.StatusActive && !deferred
	if withdrawn {
		clearTermination(c)
	}

	c.Status = out.effective
	if err := s.repo.Update(ctx, tx, c); err != nil {
		return out, db.Classify(err)
	}

	switch {
	case out.effective == domain.StatusTerminated || out.effective == domain.StatusCancelled:
		if err := s.closeTerminationRequests(ctx, tx, c.ID, domain.RequestStatusDone, ""); err != nil {
			return out, err
		}
	case withdrawn:
		if err := s.closeTerminationRequests(ctx, tx, c.ID, domain.RequestStatusCancelled, ""); err != nil {
			return out, err
		}
	}

	if err := s.audit.Append(ctx, tx, auditdomain.Entry{
		ContractID: c.ID,
		OldStatus:  string(out.old),
		NewStatus:  string(out.effective),
		Reason:     reason,
	}); err != nil {
		return out, err
	}

	s.syncRoom(ctx, tx, c, out.effective)

	switch {
	case deferred:
		out.events = append(out.events, notificationdomain.EventMoveoutApproved)
	case target == domain.StatusTerminated && out.old != domain.StatusTerminated:
		out.events = append(out.events, notificationdomain.EventMoveoutApproved)
	case (out.effective == domain.StatusActive || out.effective == domain.StatusApproved) && out.old != out.effective:
		out.events = append(out.events, notificationdomain.EventContractApproved)
	case out.effective == domain.StatusTerminateRequested && out.old != out.effective:
		out.events = append(out.events, notificationdomain.EventMoveoutApplied)
	}
	return out, nil
}

// syncRoom mirrors the contract status on the room. It runs in a savepoint so
// a failure leaves the surrounding transaction usable; the history row stays
// the record of truth.
func (s *Service) syncRoom(ctx context.Context, tx *gorm.DB, c *domain.Contract, status domain.Status) {
	roomStatus, ok := roomStatusFor[status]
	if !ok {
		return
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.rooms.SyncStatus(ctx, sp, c.RoomID, roomStatus)
	})
	if err != nil {
		s.log.Warn("room status sync failed",
			zap.String("contract_id", c.ID.String()),
			zap.String("room_id", c.RoomID.String()),
			zap.String("room_status", string(roomStatus)),
			zap.Error(err),
		)
	}
}

func (s *Service) snapshotTermination(c *domain.Contract, today time.Time) {
	remaining := 0
	if !c.IsIndefinite {
		remaining = clock.MonthsBetween(today, c.EndDate)
	}
	var penalty int64
	if remaining > 0 {
		penalty = c.Price * int64(s.policy.Get().PenaltyMonths)
	}
	now := s.clock.Now().UTC()
	if c.TerminationRequestedAt == nil {
		c.TerminationRequestedAt = &now
	}
	notice := terminationNoticeText(c.ID, today, remaining, penalty, s.cfg.SMS.DefaultBranchName)
	c.RemainingMonths = &remaining
	c.PenaltyAmount = &penalty
	c.TerminationNotice = &notice
}

// clearTermination drops the move-out date and penalty snapshot of a
// termination request that did not go through.
func clearTermination(c *domain.Contract) {
	c.TerminationEffectiveDate = nil
	c.TerminationRequestedAt = nil
	c.RemainingMonths = nil
	c.PenaltyAmount = nil
	c.TerminationNotice = nil
}

func terminationNoticeText(id snowflake.ID, today time.Time, remaining int, penalty int64, branch string) string {
	return fmt.Sprintf(`[중도해지 확인서]
계약 번호: %s
해지 요청일: %s
잔여 기간: %d개월
예상 위약금: %s원

본인은 위 위약금 발생 사실을 충분히 인지하였으며,
%s의 중도해지 정책에 따라 해지를 진행함에 동의합니다.`,
		id.String(), today.Format("2006-01-02"), remaining, smscontext.FormatAmount(penalty), branch)
}

func (s *Service) closeTerminationRequests(ctx context.Context, tx *gorm.DB, contractID snowflake.ID, status domain.RequestStatus, response string) error {
	open, err := s.repo.ListOpenRequests(ctx, tx, contractID, domain.RequestTypeTermination)
	if err != nil {
		return db.Classify(err)
	}
	now := s.clock.Now().UTC()
	for i := range open {
		req := &open[i]
		req.Status = status
		req.ProcessedAt = &now
		if response != "" && req.AdminResponse == nil {
			req.AdminResponse = &response
		}
		if err := s.repo.UpdateRequest(ctx, tx, req); err != nil {
			return db.Classify(err)
		}
	}
	return nil
}

// RequestTermination records a tenant's move-out request and moves the
// contract to terminate_requested with a penalty snapshot.
func (s *Service) RequestTermination(ctx context.Context, req domain.TerminationRequest) (*domain.ContractRequest, error) {
	today := clock.Today(s.clock)
	var effective *time.Time
	if req.EffectiveDate != nil {
		d := clock.DateOf(*req.EffectiveDate)
		if d.Before(today) {
			return nil, errs.Validation(domain.ErrInvalidTermDate)
		}
		effective = &d
	}

	var (
		contract *domain.Contract
		created  *domain.ContractRequest
		result   transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contract, err = s.lockContract(ctx, tx, req.ContractID)
		if err != nil {
			return err
		}
		if contract.Status != domain.StatusActive {
			return errs.BusinessRule(domain.ErrInvalidTransition, "이용 중인 계약만 해지 신청할 수 있습니다.")
		}
		if err := s.ensureNoOpenRequest(ctx, tx, contract.ID, domain.RequestTypeTermination); err != nil {
			return err
		}

		contract.TerminationEffectiveDate = effective
		contract.TerminationRequestedAt = nil
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "tenant requested termination"
		}
		result, err = s.apply(ctx, tx, contract, domain.StatusTerminateRequested, reason)
		if err != nil {
			return err
		}

		details := domain.RequestDetails{
			RemainingMonths: contract.RemainingMonths,
			PenaltyAmount:   contract.PenaltyAmount,
			Confirmed:       req.Confirmed,
			Note:            strings.TrimSpace(req.Reason),
		}
		if effective != nil {
			details.TerminationDate = effective.Format("2006-01-02")
		}
		if contract.TerminationNotice != nil {
			details.ConfirmationText = *contract.TerminationNotice
		}
		created, err = s.insertRequest(ctx, tx, contract, domain.RequestTypeTermination, details)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, contract, result)
	return created, nil
}

// RequestExtension asks to prolong a fixed-term contract by whole months.
func (s *Service) RequestExtension(ctx context.Context, req domain.ExtensionRequest) (*domain.ContractRequest, error) {
	if req.Months < 1 || req.Months > 60 {
		return nil, errs.Validation(domain.ErrInvalidExtension)
	}

	var (
		contract *domain.Contract
		created  *domain.ContractRequest
		result   transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contract, err = s.lockContract(ctx, tx, req.ContractID)
		if err != nil {
			return err
		}
		if contract.Status != domain.StatusActive {
			return errs.BusinessRule(domain.ErrInvalidTransition, "이용 중인 계약만 연장 신청할 수 있습니다.")
		}
		if contract.IsIndefinite {
			return errs.BusinessRule(domain.ErrInvalidExtension, "기간 제한이 없는 계약은 연장할 수 없습니다.")
		}
		if err := s.ensureNoOpenRequest(ctx, tx, contract.ID, domain.RequestTypeExtension); err != nil {
			return err
		}

		result, err = s.apply(ctx, tx, contract, domain.StatusExtendRequested, "tenant requested extension")
		if err != nil {
			return err
		}
		created, err = s.insertRequest(ctx, tx, contract, domain.RequestTypeExtension, domain.RequestDetails{
			ExtensionMonths: req.Months,
			Note:            strings.TrimSpace(req.Note),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, contract, result)
	return created, nil
}

func (s *Service) ensureNoOpenRequest(ctx context.Context, tx *gorm.DB, contractID snowflake.ID, reqType domain.RequestType) error {
	open, err := s.repo.ListOpenRequests(ctx, tx, contractID, reqType)
	if err != nil {
		return db.Classify(err)
	}
	if len(open) > 0 {
		return errs.Conflict(domain.ErrRequestPending)
	}
	return nil
}

func (s *Service) insertRequest(ctx context.Context, tx *gorm.DB, c *domain.Contract, reqType domain.RequestType, details domain.RequestDetails) (*domain.ContractRequest, error) {
	now := s.clock.Now().UTC()
	req := &domain.ContractRequest{
		ID:         s.genID.Generate(),
		ContractID: c.ID,
		UserID:     c.UserID,
		Type:       reqType,
		Status:     domain.RequestStatusPending,
		Details:    datatypes.NewJSONType(details),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType == string(auditdomain.ActorTypeUser) && actorID != "" {
		req.UserID = &actorID
	}
	if err := s.repo.InsertRequest(ctx, tx, req); err != nil {
		return nil, db.Classify(err)
	}
	return req, nil
}

// DecideRequest approves or rejects a pending request and carries the
// decision through to the contract.
func (s *Service) DecideRequest(ctx context.Context, decision domain.Decision) (*domain.ContractRequest, error) {
	var (
		contract *domain.Contract
		request  *domain.ContractRequest
		result   *transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.FindRequestForUpdate(ctx, tx, decision.RequestID)
		if err != nil {
			return db.Classify(err)
		}
		if req == nil {
			return errs.NotFound(domain.ErrRequestNotFound)
		}
		if req.Status != domain.RequestStatusPending {
			return errs.BusinessRule(domain.ErrRequestClosed, "이미 처리된 요청입니다.")
		}

		contract, err = s.lockContract(ctx, tx, req.ContractID)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		req.ProcessedAt = &now
		req.AdminResponse = optional(decision.AdminResponse)
		request = req

		switch req.Type {
		case domain.RequestTypeExtension:
			result, err = s.decideExtension(ctx, tx, contract, req, decision.Approve)
		case domain.RequestTypeTermination:
			result, err = s.decideTermination(ctx, tx, contract, req, decision.Approve)
		default:
			req.Status = domain.RequestStatusRejected
			if decision.Approve {
				req.Status = domain.RequestStatusDone
			}
			err = s.repo.UpdateRequest(ctx, tx, req)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.afterTransition(ctx, contract, *result)
	}
	s.log.Info("contract request decided",
		zap.String("request_id", request.ID.String()),
		zap.String("contract_id", request.ContractID.String()),
		zap.String("type", string(request.Type)),
		zap.String("status", string(request.Status)),
	)
	return request, nil
}

func (s *Service) decideExtension(ctx context.Context, tx *gorm.DB, c *domain.Contract, req *domain.ContractRequest, approve bool) (*transition, error) {
	req.Status = domain.RequestStatusRejected
	if approve {
		months := req.Details.Data().ExtensionMonths
		if months < 1 {
			return nil, errs.Validation(domain.ErrInvalidExtension)
		}
		c.EndDate = clock.AddMonths(c.EndDate, months)
		c.Months += months
		req.Status = domain.RequestStatusDone
	}
	if err := s.repo.UpdateRequest(ctx, tx, req); err != nil {
		return nil, db.Classify(err)
	}

	if c.Status != domain.StatusExtendRequested {
		if err := s.repo.Update(ctx, tx, c); err != nil {
			return nil, db.Classify(err)
		}
		return nil, nil
	}
	reason := "extension rejected"
	if approve {
		reason = fmt.Sprintf("extension approved (+%d months)", req.Details.Data().ExtensionMonths)
	}
	result, err := s.apply(ctx, tx, c, domain.StatusActive, reason)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) decideTermination(ctx context.Context, tx *gorm.DB, c *domain.Contract, req *domain.ContractRequest, approve bool) (*transition, error) {
	if !approve {
		req.Status = domain.RequestStatusCancelled
		if err := s.repo.UpdateRequest(ctx, tx, req); err != nil {
			return nil, db.Classify(err)
		}
		if c.Status != domain.StatusTerminateRequested {
			return nil, nil
		}
		result, err := s.apply(ctx, tx, c, domain.StatusActive, "termination rejected")
		if err != nil {
			return nil, err
		}
		return &result, nil
	}

	req.Status = domain.RequestStatusDone
	if err := s.repo.UpdateRequest(ctx, tx, req); err != nil {
		return nil, db.Classify(err)
	}
	if c.TerminationEffectiveDate != nil {
		c.EndDate = *c.TerminationEffectiveDate
		c.IsIndefinite = false
	}
	result, err := s.apply(ctx, tx, c, domain.StatusTerminated, "termination approved")
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SweepExpired terminates active contracts whose end date has passed. Each
// contract commits on its own; one failure does not stop the batch.
func (s *Service) SweepExpired(ctx context.Context, today time.Time, batchSize int) (domain.SweepResult, error) {
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "")
	ctx = auditcontext.WithSource(ctx, "scheduler")
	today = clock.DateOf(today)

	ids, err := s.repo.ListExpired(ctx, s.db, today, batchSize)
	if err != nil {
		return domain.SweepResult{}, db.Classify(err)
	}

	res := domain.SweepResult{Scanned: len(ids)}
	var errList []error
	for _, id := range ids {
		var (
			contract *domain.Contract
			result   transition
			skipped  bool
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			contract, err = s.lockContract(ctx, tx, id)
			if err != nil {
				return err
			}
			if contract.Status != domain.StatusActive || !contract.EndDate.Before(today) {
				skipped = true
				return nil
			}
			result, err = s.applyStatus(ctx, tx, contract, domain.StatusTerminated, "contract period ended", false)
			return err
		})
		if err != nil {
			if errors.Is(err, domain.ErrTerminalStatus) {
				continue
			}
			res.Failed++
			errList = append(errList, fmt.Errorf("contract %s: %w", id, err))
			continue
		}
		if skipped {
			continue
		}
		if result.effective == domain.StatusTerminated {
			res.Terminated++
		}
		s.afterTransition(ctx, contract, result)
	}

	s.log.Info("expired contracts swept",
		zap.Time("today", today),
		zap.Int("scanned", res.Scanned),
		zap.Int("terminated", res.Terminated),
		zap.Int("failed", res.Failed),
	)
	return res, errors.Join(errList...)
}

func (s *Service) afterTransition(ctx context.Context, c *domain.Contract, result transition) {
	s.log.Info("contract status changed",
		zap.String("contract_id", c.ID.String()),
		zap.String("old_status", string(result.old)),
		zap.String("new_status", string(result.effective)),
	)
	s.metrics.RecordTransition(ctx, string(result.old), string(result.effective))
	if len(result.events) == 0 {
		return
	}
	room, err := s.rooms.GetRoom(ctx, c.RoomID)
	if err != nil {
		room = nil
	}
	for _, event := range result.events {
		s.notify(ctx, event, c, room)
	}
}

// notify never fails the caller; delivery problems end up in sms_logs and
// the log stream.
func (s *Service) notify(ctx context.Context, event notificationdomain.EventType, c *domain.Contract, room *roomdomain.Room) {
	if s.notifier == nil {
		return
	}
	policy := s.policy.Get()
	today := clock.Today(s.clock)
	vars := smscontext.Build(smscontext.Input{
		Contract:        c,
		Room:            room,
		Event:           event,
		Today:           today,
		DefaultBranch:   s.cfg.SMS.DefaultBranchName,
		RenewNoticeDays: policy.RenewNoticeDay,
		RefundDelayDays: policy.RefundDelayDay,
	})
	res, err := s.notifier.Send(ctx, notificationdomain.SendRequest{
		EventType:    event,
		ContractID:   c.ID,
		BusinessDate: today,
		Receiver:     c.TenantPhone,
		Vars:         vars,
	})
	if err != nil {
		s.log.Warn("notification not delivered",
			zap.String("contract_id", c.ID.String()),
			zap.String("event_type", string(event)),
			zap.String("result", string(res.Status)),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("notification dispatched",
		zap.String("contract_id", c.ID.String()),
		zap.String("event_type", string(event)),
		zap.String("result", string(res.Status)),
	)
}
