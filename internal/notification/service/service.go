package service

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eroom/internal/audit/masking"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/notification/domain"
	"github.com/smallbiznis/eroom/internal/notification/smscontext"
	"github.com/smallbiznis/eroom/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dateLayout      = "2006-01-02"
	defaultLogLimit = 100
)

//go:embed templates.yaml
var defaultTemplates []byte

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Policy    *config.PricingPolicyHolder
	GenID     *snowflake.Node
	Repo      domain.Repository
	Provider  domain.Provider
	Contracts contractdomain.Repository
	Rooms     roomdomain.Provider
	Pricing   pricingdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	clock     clock.Clock
	policy    *config.PricingPolicyHolder
	genID     *snowflake.Node
	repo      domain.Repository
	provider  domain.Provider
	contracts contractdomain.Repository
	rooms     roomdomain.Provider
	pricing   pricingdomain.Service
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("notification.service"),
		cfg:       p.Config,
		clock:     p.Clock,
		policy:    p.Policy,
		genID:     p.GenID,
		repo:      p.Repo,
		provider:  p.Provider,
		contracts: p.Contracts,
		rooms:     p.Rooms,
		pricing:   p.Pricing,
		metrics:   p.Metrics,
		validate:  validator.New(),
	}
}

// DedupKey identifies one logical notification: TYPE:contract:YYYY-MM-DD.
func DedupKey(eventType domain.EventType, contractID snowflake.ID, businessDate time.Time) string {
	return fmt.Sprintf("%s:%d:%s", eventType, contractID, businessDate.Format(dateLayout))
}

// Send renders and delivers one notification. The sms_logs insert claims the
// dedup key before the provider is called, so concurrent senders of the same
// key deliver once and the rest report Skipped.
func (s *Service) Send(ctx context.Context, req domain.SendRequest) (domain.Result, error) {
	res, err := s.send(ctx, req)
	s.metrics.RecordNotification(ctx, string(req.EventType), string(res.Status))
	return res, err
}

func (s *Service) send(ctx context.Context, req domain.SendRequest) (domain.Result, error) {
	failed := domain.Result{Status: domain.ResultFailed}
	if !req.EventType.Valid() && !(req.EventType == domain.EventManual && req.ContentOverride != "") {
		return failed, errs.Validation(domain.ErrInvalidEventType)
	}

	businessDate := clock.DateOf(req.BusinessDate)
	if req.BusinessDate.IsZero() {
		businessDate = clock.Today(s.clock)
	}
	key := DedupKey(req.EventType, req.ContractID, businessDate)
	if req.Force {
		key += ":force:" + ulid.Make().String()
	}
	failed.DedupKey = key

	receiver := masking.DigitsOnly(req.Receiver)
	if receiver == "" {
		receiver = masking.DigitsOnly(req.Vars["user_phone"])
	}

	// failures found before the provider is called still claim the key with a
	// FAILED row
	var (
		failure  error
		rendered string
		missing  []string
	)
	content := req.ContentOverride
	if strings.TrimSpace(content) == "" {
		tmpl, err := s.repo.FindActiveTemplate(ctx, s.db, req.EventType)
		if err != nil {
			return failed, db.Classify(err)
		}
		if tmpl == nil {
			failed.Message = "template not found"
			failure = errs.Notification(domain.ErrTemplateNotFound, string(req.EventType))
		} else {
			content = tmpl.Content
		}
	}
	if failure == nil && receiver == "" {
		failed.Message = "receiver phone number missing"
		failure = errs.Notification(domain.ErrReceiverMissing, "")
	}
	if failure == nil {
		rendered, missing = Render(content, req.Vars)
		if len(missing) > 0 {
			failed.Missing = missing
			failed.Message = "Missing variables: " + strings.Join(missing, ", ")
			failure = errs.Notification(domain.ErrMissingVariables, strings.Join(missing, ", "))
		}
	}

	now := s.clock.Now().UTC()
	entry := &domain.Log{
		ID:              s.genID.Generate(),
		Type:            req.EventType,
		DedupKey:        key,
		RelatedDate:     businessDate,
		Receiver:        receiver,
		ContentSnapshot: rendered,
		ContextSnapshot: datatypes.NewJSONType(masking.MaskVars(req.Vars)),
		Status:          domain.LogStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ContractID != 0 {
		id := req.ContractID
		entry.ContractID = &id
	}
	if failure != nil {
		msg := failed.Message
		entry.Status = domain.LogStatusFailed
		entry.ErrorMessage = &msg
	}

	claimed, err := s.repo.ClaimLog(ctx, s.db, entry)
	if err != nil {
		return failed, db.Classify(err)
	}
	if !claimed {
		s.log.Info("notification skipped as duplicate", zap.String("dedup_key", key))
		return domain.Result{Status: domain.ResultSkipped, DedupKey: key}, nil
	}

	failed.LogID = entry.ID
	if failure != nil {
		s.log.Warn("notification not sent",
			zap.String("dedup_key", key),
			zap.String("reason", failed.Message),
		)
		return failed, failure
	}

	providerName := s.provider.Name()
	msgID, sendErr := s.provider.Send(ctx, receiver, rendered)
	if sendErr != nil {
		msg := sendErr.Error()
		if err := s.repo.CompleteLog(ctx, s.db, entry.ID, domain.LogStatusFailed, &providerName, nil, &msg); err != nil {
			s.log.Error("failed to record notification failure", zap.String("dedup_key", key), zap.Error(err))
		}
		s.log.Warn("notification provider failed",
			zap.String("dedup_key", key),
			zap.String("provider", providerName),
			zap.String("receiver", masking.MaskPhone(receiver)),
			zap.Error(sendErr),
		)
		failed.Message = msg
		return failed, errs.Notification(fmt.Errorf("%w: %v", domain.ErrProviderFailed, sendErr), "")
	}

	if err := s.repo.CompleteLog(ctx, s.db, entry.ID, domain.LogStatusSent, &providerName, &msgID, nil); err != nil {
		s.log.Error("failed to record notification delivery", zap.String("dedup_key", key), zap.Error(err))
	}
	s.log.Info("notification sent",
		zap.String("dedup_key", key),
		zap.String("provider", providerName),
		zap.String("receiver", masking.MaskPhone(receiver)),
	)
	return domain.Result{Status: domain.ResultDelivered, DedupKey: key, LogID: entry.ID}, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.TemplateView, error) {
	items, err := s.repo.ListTemplates(ctx, s.db)
	if err != nil {
		return nil, db.Classify(err)
	}
	sample := smscontext.Sample()
	views := make([]domain.TemplateView, 0, len(items))
	for _, item := range items {
		rendered, _ := Render(item.Content, sample)
		size, kind := domain.MeasureContent(rendered)
		views = append(views, domain.TemplateView{
			Template:         item,
			AllowedVariables: domain.VariableSchema[item.Type],
			Bytes:            size,
			MessageType:      kind,
		})
	}
	return views, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, eventType domain.EventType, req domain.UpdateTemplateRequest) (*domain.Template, error) {
	if !eventType.Valid() {
		return nil, errs.Validation(domain.ErrInvalidEventType)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errs.Validation(err)
	}
	if req.Content != nil {
		if unknown := unknownVariables(eventType, *req.Content); len(unknown) > 0 {
			return nil, errs.Validation(fmt.Errorf("%w: %s", domain.ErrUnknownVariable, strings.Join(unknown, ", ")))
		}
	}

	var updated *domain.Template
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tmpl, err := s.repo.FindTemplate(ctx, tx, eventType)
		if err != nil {
			return db.Classify(err)
		}
		if tmpl == nil {
			return errs.NotFound(domain.ErrTemplateNotFound)
		}
		if req.Title != nil {
			tmpl.Title = strings.TrimSpace(*req.Title)
		}
		if req.Content != nil {
			tmpl.Content = *req.Content
		}
		if req.IsActive != nil {
			tmpl.IsActive = *req.IsActive
		}
		if req.ScheduleOffset != nil {
			tmpl.ScheduleOffset = *req.ScheduleOffset
		}
		if _, actorID := auditcontext.ActorFromContext(ctx); actorID != "" {
			tmpl.UpdatedBy = &actorID
		}
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			tmpl.UpdatedReason = &reason
		}
		if err := s.repo.SaveTemplate(ctx, tx, tmpl); err != nil {
			return db.Classify(err)
		}
		updated = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sms template updated",
		zap.String("type", string(eventType)),
		zap.Bool("active", updated.IsActive),
		zap.Int("schedule_offset", updated.ScheduleOffset),
	)
	return updated, nil
}

func unknownVariables(eventType domain.EventType, content string) []string {
	allowed := map[string]bool{}
	for _, name := range domain.VariableSchema[eventType] {
		allowed[name] = true
	}
	var unknown []string
	for _, name := range Placeholders(content) {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Preview renders content, or the stored template when content is empty,
// against the contract's context or sample values.
func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (*domain.Preview, error) {
	content := req.Content
	if strings.TrimSpace(content) == "" {
		if !req.EventType.Valid() {
			return nil, errs.Validation(domain.ErrInvalidEventType)
		}
		tmpl, err := s.repo.FindTemplate(ctx, s.db, req.EventType)
		if err != nil {
			return nil, db.Classify(err)
		}
		if tmpl == nil {
			return nil, errs.NotFound(domain.ErrTemplateNotFound)
		}
		content = tmpl.Content
	}

	vars := smscontext.Sample()
	if req.ContractID != 0 {
		contractVars, err := s.contractVars(ctx, req.ContractID, req.EventType)
		if err != nil {
			return nil, err
		}
		vars = contractVars
	}
	for k, v := range req.Vars {
		vars[k] = v
	}

	rendered, missing := Render(content, vars)
	size, kind := domain.MeasureContent(rendered)
	if missing == nil {
		missing = []string{}
	}
	return &domain.Preview{
		Content:     rendered,
		Missing:     missing,
		Vars:        vars,
		Bytes:       size,
		MessageType: kind,
	}, nil
}

// SendManual always delivers, even when the same event already went out today.
func (s *Service) SendManual(ctx context.Context, req domain.ManualSendRequest) (domain.Result, error) {
	eventType := req.EventType
	if eventType == "" {
		eventType = domain.EventManual
	}
	send := domain.SendRequest{
		EventType:       eventType,
		ContractID:      req.ContractID,
		BusinessDate:    clock.Today(s.clock),
		Receiver:        req.Receiver,
		Vars:            map[string]string{},
		Force:           true,
		ContentOverride: req.Content,
	}
	if req.ContractID != 0 {
		contract, err := s.contracts.FindByID(ctx, s.db, req.ContractID)
		if err != nil {
			return domain.Result{Status: domain.ResultFailed}, db.Classify(err)
		}
		if contract == nil {
			return domain.Result{Status: domain.ResultFailed}, errs.NotFound(contractdomain.ErrContractNotFound)
		}
		send.Vars = s.buildVars(ctx, contract, eventType, send.BusinessDate)
		if strings.TrimSpace(send.Receiver) == "" {
			send.Receiver = contract.TenantPhone
		}
	}
	return s.Send(ctx, send)
}

func (s *Service) contractVars(ctx context.Context, contractID snowflake.ID, eventType domain.EventType) (map[string]string, error) {
	contract, err := s.contracts.FindByID(ctx, s.db, contractID)
	if err != nil {
		return nil, db.Classify(err)
	}
	if contract == nil {
		return nil, errs.NotFound(contractdomain.ErrContractNotFound)
	}
	return s.buildVars(ctx, contract, eventType, clock.Today(s.clock)), nil
}

func (s *Service) buildVars(ctx context.Context, c *contractdomain.Contract, eventType domain.EventType, today time.Time) map[string]string {
	var room *roomdomain.Room
	if r, err := s.rooms.GetRoom(ctx, c.RoomID); err == nil {
		room = r
	}
	policy := s.policy.Get()
	return smscontext.Build(smscontext.Input{
		Contract:        c,
		Room:            room,
		Event:           eventType,
		Today:           today,
		DefaultBranch:   s.cfg.SMS.DefaultBranchName,
		RenewNoticeDays: policy.RenewNoticeDay,
		RefundDelayDays: policy.RefundDelayDay,
	})
}

func (s *Service) ListLogs(ctx context.Context, req domain.ListLogsRequest) (domain.ListLogsResponse, error) {
	filter := domain.LogFilter{
		Status:     domain.LogStatus(strings.ToUpper(strings.TrimSpace(string(req.Status)))),
		ContractID: req.ContractID,
	}
	after, err := req.After()
	if err != nil {
		return domain.ListLogsResponse{}, errs.Validation(domain.ErrInvalidPageToken)
	}
	if after != 0 {
		filter.Cursor = &domain.LogCursor{ID: after}
	}
	pageSize := req.Size(defaultLogLimit, defaultLogLimit)
	filter.Limit = pageSize

	items, err := s.repo.ListLogs(ctx, s.db, filter)
	if err != nil {
		return domain.ListLogsResponse{}, db.Classify(err)
	}
	items, pageInfo := pagination.Page(items, pageSize, func(item *domain.Log) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})

	logs := make([]domain.Log, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}
	return domain.ListLogsResponse{PageInfo: pageInfo, Logs: logs}, nil
}

type seedFile struct {
	Templates []struct {
		Type    domain.EventType `yaml:"type"`
		Title   string           `yaml:"title"`
		Offset  int              `yaml:"offset"`
		Active  *bool            `yaml:"active"`
		Content string           `yaml:"content"`
	} `yaml:"templates"`
}

// SeedTemplates inserts the bundled default templates that do not exist yet
// and reports how many it added.
func (s *Service) SeedTemplates(ctx context.Context) (int, error) {
	var file seedFile
	if err := yaml.Unmarshal(defaultTemplates, &file); err != nil {
		return 0, fmt.Errorf("parse default templates: %w", err)
	}

	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range file.Templates {
			if !seed.Type.Valid() {
				return fmt.Errorf("default template %q: %w", seed.Type, domain.ErrInvalidEventType)
			}
			active := true
			if seed.Active != nil {
				active = *seed.Active
			}
			now := time.Now().UTC()
			ok, err := s.repo.InsertTemplateIfMissing(ctx, tx, &domain.Template{
				ID:             s.genID.Generate(),
				Type:           seed.Type,
				Title:          seed.Title,
				Content:        strings.TrimSpace(seed.Content),
				IsActive:       active,
				ScheduleOffset: seed.Offset,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			if err != nil {
				return db.Classify(err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.log.Info("default sms templates seeded", zap.Int("inserted", inserted))
	}
	return inserted, nil
}
