package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

type CreateRequest struct {
	RoomID        snowflake.ID                `json:"room_id" validate:"required"`
	Months        int                         `json:"months" validate:"gte=0,lte=120"`
	Hours         int                         `json:"hours" validate:"gte=0,lte=24"`
	StartDate     time.Time                   `json:"start_date" validate:"required"`
	StartTime     string                      `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime       string                      `json:"end_time" validate:"omitempty,datetime=15:04"`
	IsIndefinite  bool                        `json:"is_indefinite"`
	PaymentDay    int                         `json:"payment_day" validate:"gte=0,lte=31"`
	PaymentMethod pricingdomain.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=bank card"`
	CouponCode    string                      `json:"coupon_code" validate:"max=64"`
	UserID        string                      `json:"user_id"`
	TenantName    string                      `json:"tenant_name" validate:"required,max=64"`
	TenantPhone   string                      `json:"tenant_phone" validate:"required_without=TenantEmail"`
	TenantEmail   string                      `json:"tenant_email" validate:"omitempty,email"`
}

type TransitionRequest struct {
	ContractID snowflake.ID `json:"-"`
	Status     Status       `json:"status"`
	Reason     string       `json:"reason"`
}

type TerminationRequest struct {
	ContractID    snowflake.ID `json:"-"`
	EffectiveDate *time.Time   `json:"termination_date"`
	Confirmed     bool         `json:"termination_confirmation_checked"`
	Reason        string       `json:"reason"`
}

type ExtensionRequest struct {
	ContractID snowflake.ID `json:"-"`
	Months     int          `json:"extension_months"`
	Note       string       `json:"note"`
}

type Decision struct {
	RequestID     snowflake.ID `json:"-"`
	Approve       bool         `json:"approve"`
	AdminResponse string       `json:"admin_response"`
}

type ListRequest struct {
	pagination.Pagination
	Status Status
	RoomID snowflake.ID
	UserID string
}

type ListResponse struct {
	pagination.PageInfo
	Contracts []Contract `json:"contracts"`
}

type SweepResult struct {
	Scanned    int `json:"scanned"`
	Terminated int `json:"terminated"`
	Failed     int `json:"failed"`
}

// TerminationNotice is what the move-out confirmation document shows.
type TerminationNotice struct {
	Contract Contract
	Request  *ContractRequest
	RoomName string
	Branch   string
	IssuedOn time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Contract, error)
	Get(ctx context.Context, id snowflake.ID) (*Contract, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	TransitionStatus(ctx context.Context, req TransitionRequest) (*Contract, error)
	RequestTermination(ctx context.Context, req TerminationRequest) (*ContractRequest, error)
	RequestExtension(ctx context.Context, req ExtensionRequest) (*ContractRequest, error)
	DecideRequest(ctx context.Context, req Decision) (*ContractRequest, error)
	ListRequests(ctx context.Context, contractID snowflake.ID) ([]ContractRequest, error)
	SweepExpired(ctx context.Context, today time.Time, batchSize int) (SweepResult, error)
	MapTenant(ctx context.Context, contractID snowflake.ID, userID string) (*Contract, error)
	AutoMapTenant(ctx context.Context, userID, phone, email string) (int64, error)
	ListUnmapped(ctx context.Context) ([]Contract, error)
	TerminationNotice(ctx context.Context, id snowflake.ID) (*TerminationNotice, error)
}

type ListFilter struct {
	Status   Status
	RoomID   snowflake.ID
	UserID   string
	AfterID  snowflake.ID
	Limit    int
	Unmapped bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	// FindByIDForUpdate row-locks the contract for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Contract, error)
	ListExpired(ctx context.Context, db *gorm.DB, today time.Time, limit int) ([]snowflake.ID, error)
	ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Contract, error)
	SetUser(ctx context.Context, db *gorm.DB, id snowflake.ID, userID string) (int64, error)
	MapUnmappedByContact(ctx context.Context, db *gorm.DB, userID, phone, email string) (int64, error)

	InsertRequest(ctx context.Context, db *gorm.DB, req *ContractRequest) error
	FindRequestForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ContractRequest, error)
	ListRequests(ctx context.Context, db *gorm.DB, contractID snowflake.ID) ([]ContractRequest, error)
	ListOpenRequests(ctx context.Context, db *gorm.DB, contractID snowflake.ID, reqType RequestType) ([]ContractRequest, error)
	UpdateRequest(ctx context.Context, db *gorm.DB, req *ContractRequest) error
}

var (
	ErrContractNotFound  = errors.New("contract_not_found")
	ErrRequestNotFound   = errors.New("contract_request_not_found")
	ErrStatusRequired    = errors.New("status_required")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrTerminalStatus    = errors.New("contract_status_terminal")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrRequestPending    = errors.New("contract_request_pending")
	ErrRequestClosed     = errors.New("contract_request_closed")
	ErrInvalidExtension  = errors.New("invalid_extension")
	ErrInvalidTermDate   = errors.New("invalid_termination_date")
	ErrAlreadyMapped     = errors.New("contract_already_mapped")
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
)
