package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/audit/masking"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	"github.com/smallbiznis/eroom/internal/contract/domain"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Clock    clock.Clock
	Policy   *config.PricingPolicyHolder
	GenID    *snowflake.Node
	Repo     domain.Repository
	Pricing  pricingdomain.Service
	Rooms    roomdomain.Provider
	Coupons  coupondomain.Repository
	Audit    auditdomain.Sink
	Notifier notificationdomain.Notifier `optional:"true"`
	Metrics  *metrics.Metrics            `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	clock    clock.Clock
	policy   *config.PricingPolicyHolder
	genID    *snowflake.Node
	repo     domain.Repository
	pricing  pricingdomain.Service
	rooms    roomdomain.Provider
	coupons  coupondomain.Repository
	audit    auditdomain.Sink
	notifier notificationdomain.Notifier
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("contract.service"),
		cfg:      p.Config,
		clock:    p.Clock,
		policy:   p.Policy,
		genID:    p.GenID,
		repo:     p.Repo,
		pricing:  p.Pricing,
		rooms:    p.Rooms,
		coupons:  p.Coupons,
		audit:    p.Audit,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

// Create prices the booking without strict coupon checks, consumes the coupon
// and stores the contract as requested.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Contract, error) {
	req.TenantName = strings.TrimSpace(req.TenantName)
	req.TenantEmail = strings.TrimSpace(req.TenantEmail)
	req.TenantPhone = masking.DigitsOnly(req.TenantPhone)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Validation(err)
	}

	months := req.Months
	if req.IsIndefinite && months == 0 {
		months = 1
	}
	startDate := clock.DateOf(req.StartDate)

	quote, err := s.pricing.Quote(ctx, pricingdomain.QuoteRequest{
		RoomID:        req.RoomID,
		Months:        months,
		Hours:         req.Hours,
		CouponCode:    req.CouponCode,
		StartDate:     startDate,
		PaymentDay:    req.PaymentDay,
		PaymentMethod: req.PaymentMethod,
	}, false)
	if err != nil {
		return nil, err
	}
	bd := quote.Breakdown

	endDate := clock.AddMonths(startDate, months)
	switch {
	case quote.Room.IsHourly():
		endDate = startDate
		months = 0
	case req.IsIndefinite:
		endDate = domain.IndefiniteEndDate
	}

	paymentDay := req.PaymentDay
	if paymentDay == 0 {
		paymentDay = 1
	}

	now := s.clock.Now().UTC()
	contract := &domain.Contract{
		ID:            s.genID.Generate(),
		RoomID:        quote.Room.ID,
		TenantName:    req.TenantName,
		TenantPhone:   req.TenantPhone,
		TenantEmail:   req.TenantEmail,
		StartDate:     startDate,
		EndDate:       endDate,
		IsIndefinite:  req.IsIndefinite && !quote.Room.IsHourly(),
		StartTime:     optional(req.StartTime),
		EndTime:       optional(req.EndTime),
		Months:        months,
		Hours:         bd.Hours,
		Price:         bd.RecurringPrice,
		Deposit:       bd.Deposit,
		PaymentDay:    paymentDay,
		PaymentMethod: bd.PaymentMethod,
		CouponID:      bd.CouponID,
		Breakdown:     datatypes.NewJSONType(bd),
		Status:        domain.StatusRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.UserID != "" {
		contract.UserID = &req.UserID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if bd.CouponID != nil {
			ok, err := s.coupons.TryConsume(ctx, tx, *bd.CouponID)
			if err != nil {
				return db.Classify(err)
			}
			if !ok {
				return errs.BusinessRule(coupondomain.ErrCouponExhausted, coupondomain.Reason(coupondomain.ErrCouponExhausted, nil))
			}
		}
		if err := s.repo.Insert(ctx, tx, contract); err != nil {
			return db.Classify(err)
		}
		return s.audit.Append(ctx, tx, auditdomain.Entry{
			ContractID: contract.ID,
			NewStatus:  string(domain.StatusRequested),
			Reason:     "contract created",
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("room_id", contract.RoomID.String()),
		zap.String("tenant_phone", masking.MaskPhone(contract.TenantPhone)),
		zap.Int64("total_due", bd.TotalDue),
		zap.Bool("coupon_applied", bd.CouponID != nil),
	)
	if bd.CouponID != nil {
		s.metrics.RecordCouponRedemption(ctx)
	}
	s.metrics.RecordTransition(ctx, "", string(domain.StatusRequested))

	s.notify(ctx, notificationdomain.EventContractApplied, contract, quote.Room)
	return contract, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Contract, error) {
	contract, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Classify(err)
	}
	if contract == nil {
		return nil, errs.NotFound(domain.ErrContractNotFound)
	}
	return contract, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListResponse{}, errs.Validation(domain.ErrInvalidStatus)
	}
	filter := domain.ListFilter{Status: req.Status, RoomID: req.RoomID, UserID: req.UserID}
	return s.list(ctx, filter, req.Pagination)
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) (domain.ListResponse, error) {
	after, err := page.After()
	if err != nil {
		return domain.ListResponse{}, errs.Validation(domain.ErrInvalidPageToken)
	}
	filter.AfterID = after
	pageSize := page.Size(50, 250)
	filter.Limit = pageSize

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, db.Classify(err)
	}
	items, pageInfo := pagination.Page(items, pageSize, func(item *domain.Contract) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})

	contracts := make([]domain.Contract, 0, len(items))
	for _, item := range items {
		if item != nil {
			contracts = append(contracts, *item)
		}
	}
	return domain.ListResponse{PageInfo: pageInfo, Contracts: contracts}, nil
}

func (s *Service) ListRequests(ctx context.Context, contractID snowflake.ID) ([]domain.ContractRequest, error) {
	if _, err := s.Get(ctx, contractID); err != nil {
		return nil, err
	}
	reqs, err := s.repo.ListRequests(ctx, s.db, contractID)
	if err != nil {
		return nil, db.Classify(err)
	}
	return reqs, nil
}

func (s *Service) MapTenant(ctx context.Context, contractID snowflake.ID, userID string) (*domain.Contract, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errs.Validation(domain.ErrInvalidUser)
	}

	var mapped *domain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.repo.FindByIDForUpdate(ctx, tx, contractID)
		if err != nil {
			return db.Classify(err)
		}
		if contract == nil {
			return errs.NotFound(domain.ErrContractNotFound)
		}
		if _, ok := contract.Tenant().UserID(); ok {
			return errs.Conflict(domain.ErrAlreadyMapped)
		}
		rows, err := s.repo.SetUser(ctx, tx, contractID, userID)
		if err != nil {
			return db.Classify(err)
		}
		if rows == 0 {
			return errs.Conflict(domain.ErrAlreadyMapped)
		}
		contract.UserID = &userID
		mapped = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract tenant mapped",
		zap.String("contract_id", contractID.String()),
		zap.String("user_id", masking.MaskIdentifier(userID)),
	)
	return mapped, nil
}

// AutoMapTenant attaches every unmapped contract booked with the user's
// phone or email. Phones compare on digits only, emails case-insensitively.
func (s *Service) AutoMapTenant(ctx context.Context, userID, phone, email string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errs.Validation(domain.ErrInvalidUser)
	}
	count, err := s.repo.MapUnmappedByContact(ctx, s.db, userID, masking.DigitsOnly(phone), strings.TrimSpace(email))
	if err != nil {
		return 0, db.Classify(err)
	}
	if count > 0 {
		s.log.Info("contracts auto-mapped",
			zap.String("user_id", masking.MaskIdentifier(userID)),
			zap.Int64("count", count),
		)
	}
	return count, nil
}

func (s *Service) ListUnmapped(ctx context.Context) ([]domain.Contract, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{Unmapped: true})
	if err != nil {
		return nil, db.Classify(err)
	}
	contracts := make([]domain.Contract, 0, len(items))
	for _, item := range items {
		if item != nil {
			contracts = append(contracts, *item)
		}
	}
	return contracts, nil
}

// TerminationNotice gathers the data of the move-out confirmation document.
func (s *Service) TerminationNotice(ctx context.Context, id snowflake.ID) (*domain.TerminationNotice, error) {
	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.TerminationRequestedAt == nil {
		return nil, errs.BusinessRule(domain.ErrInvalidTransition, "해지 신청 내역이 없는 계약입니다.")
	}

	notice := &domain.TerminationNotice{
		Contract: *contract,
		Branch:   s.cfg.SMS.DefaultBranchName,
		RoomName: "N/A",
		IssuedOn: clock.Today(s.clock),
	}
	if room, err := s.rooms.GetRoom(ctx, contract.RoomID); err == nil {
		notice.RoomName = room.Name
		if room.BranchName != "" {
			notice.Branch = room.BranchName
		}
	}

	reqs, err := s.repo.ListRequests(ctx, s.db, id)
	if err != nil {
		return nil, db.Classify(err)
	}
	for i := range reqs {
		if reqs[i].Type == domain.RequestTypeTermination {
			notice.Request = &reqs[i]
			break
		}
	}
	return notice, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
