package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

type ResultStatus string

const (
	ResultDelivered ResultStatus = "DELIVERED"
	ResultSkipped   ResultStatus = "SKIPPED"
	ResultFailed    ResultStatus = "FAILED"
)

type Result struct {
	Status   ResultStatus `json:"status"`
	DedupKey string       `json:"dedup_key,omitempty"`
	LogID    snowflake.ID `json:"log_id,omitempty"`
	Missing  []string     `json:"missing,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// SendRequest identifies one logical notification. Without Force, the same
// (EventType, ContractID, BusinessDate) is delivered at most once.
type SendRequest struct {
	EventType       EventType
	ContractID      snowflake.ID
	BusinessDate    time.Time
	Receiver        string
	Vars            map[string]string
	Force           bool
	ContentOverride string
}

// Notifier delivers templated messages. A failed delivery is reported through
// Result and a classified error; it never needs to undo the caller's work.
type Notifier interface {
	Send(ctx context.Context, req SendRequest) (Result, error)
}

// Provider is an outbound SMS gateway. It returns the gateway message id.
type Provider interface {
	Name() string
	Send(ctx context.Context, to, content string) (string, error)
}

type UpdateTemplateRequest struct {
	Title          *string `json:"title"`
	Content        *string `json:"content" validate:"omitempty,min=1"`
	IsActive       *bool   `json:"is_active"`
	ScheduleOffset *int    `json:"schedule_offset" validate:"omitempty,gte=0,lte=90"`
	Reason         string  `json:"reason"`
}

type PreviewRequest struct {
	EventType  EventType         `json:"type"`
	ContractID snowflake.ID      `json:"contract_id"`
	Content    string            `json:"content"`
	Vars       map[string]string `json:"vars"`
}

type Preview struct {
	Content     string            `json:"rendered"`
	Missing     []string          `json:"missing"`
	Vars        map[string]string `json:"vars"`
	Bytes       int               `json:"predicted_bytes"`
	MessageType MessageType       `json:"predicted_type"`
}

// TemplateView is a template as the admin screen lists it.
type TemplateView struct {
	Template
	AllowedVariables []string    `json:"allowed_variables"`
	Bytes            int         `json:"predicted_bytes"`
	MessageType      MessageType `json:"predicted_type"`
}

type ManualSendRequest struct {
	EventType  EventType    `json:"type"`
	ContractID snowflake.ID `json:"contract_id"`
	Receiver   string       `json:"receiver"`
	Content    string       `json:"content"`
}

type ListLogsRequest struct {
	pagination.Pagination
	Status     LogStatus
	ContractID snowflake.ID
}

type ListLogsResponse struct {
	pagination.PageInfo
	Logs []Log `json:"logs"`
}

type BatchResult struct {
	Scanned   int `json:"scanned"`
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Service is the admin-facing side of notifications plus the daily batch.
type Service interface {
	Notifier
	ListTemplates(ctx context.Context) ([]TemplateView, error)
	UpdateTemplate(ctx context.Context, eventType EventType, req UpdateTemplateRequest) (*Template, error)
	Preview(ctx context.Context, req PreviewRequest) (*Preview, error)
	SendManual(ctx context.Context, req ManualSendRequest) (Result, error)
	ListLogs(ctx context.Context, req ListLogsRequest) (ListLogsResponse, error)
	RunDaily(ctx context.Context, today time.Time, batchSize int) (BatchResult, error)
	SeedTemplates(ctx context.Context) (int, error)
}

type LogCursor struct {
	ID snowflake.ID
}

type LogFilter struct {
	Status     LogStatus
	ContractID snowflake.ID
	Cursor     *LogCursor
	Limit      int
}

type Repository interface {
	FindActiveTemplate(ctx context.Context, db *gorm.DB, eventType EventType) (*Template, error)
	FindTemplate(ctx context.Context, db *gorm.DB, eventType EventType) (*Template, error)
	ListTemplates(ctx context.Context, db *gorm.DB) ([]Template, error)
	SaveTemplate(ctx context.Context, db *gorm.DB, tmpl *Template) error
	// InsertTemplateIfMissing keeps existing rows untouched and reports whether it inserted.
	InsertTemplateIfMissing(ctx context.Context, db *gorm.DB, tmpl *Template) (bool, error)
	// ClaimLog inserts the log row unless dedup_key exists; false means duplicate.
	ClaimLog(ctx context.Context, db *gorm.DB, entry *Log) (bool, error)
	CompleteLog(ctx context.Context, db *gorm.DB, id snowflake.ID, status LogStatus, provider, providerMessageID, errorMessage *string) error
	ListLogs(ctx context.Context, db *gorm.DB, filter LogFilter) ([]*Log, error)
}

var (
	ErrTemplateNotFound = errors.New("sms_template_not_found")
	ErrReceiverMissing  = errors.New("sms_receiver_missing")
	ErrMissingVariables = errors.New("sms_missing_variables")
	ErrProviderFailed   = errors.New("sms_provider_failed")
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrUnknownVariable  = errors.New("sms_unknown_variable")
)
