package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/eroom/internal/pricing/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusRequested          Status = "requested"
	StatusApproved           Status = "approved"
	StatusActive             Status = "active"
	StatusExtendRequested    Status = "extend_requested"
	StatusTerminateRequested Status = "terminate_requested"
	StatusTerminated         Status = "terminated"
	StatusCancelled          Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusActive, StatusExtendRequested,
		StatusTerminateRequested, StatusTerminated, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusCancelled
}

// IndefiniteEndDate is stored as end_date of open-ended contracts. It never
// marks a real move-out.
var IndefiniteEndDate = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Contract is a tenancy of one room. Rows are never deleted; cancelled and
// terminated contracts stay for audit.
type Contract struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	RoomID      snowflake.ID `gorm:"not null;index" json:"room_id"`
	UserID      *string      `gorm:"type:text;index" json:"user_id,omitempty"`
	TenantName  string       `gorm:"type:text;not null" json:"tenant_name"`
	TenantPhone string       `gorm:"type:text;index" json:"tenant_phone"`
	TenantEmail string       `gorm:"type:text" json:"tenant_email"`

	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null;index" json:"end_date"`
	IsIndefinite bool      `gorm:"not null" json:"is_indefinite"`
	StartTime    *string   `gorm:"type:text" json:"start_time,omitempty"`
	EndTime      *string   `gorm:"type:text" json:"end_time,omitempty"`
	Months       int       `gorm:"not null" json:"months"`
	Hours        int       `gorm:"not null" json:"hours,omitempty"`

	Price         int64                                       `gorm:"not null" json:"price"`
	Deposit       int64                                       `gorm:"not null" json:"deposit"`
	PaymentDay    int                                         `gorm:"not null" json:"payment_day"`
	PaymentMethod pricingdomain.PaymentMethod                 `gorm:"type:text;not null" json:"payment_method"`
	CouponID      *snowflake.ID                               `json:"coupon_id,omitempty"`
	Breakdown     datatypes.JSONType[pricingdomain.Breakdown] `json:"breakdown"`

	Status Status `gorm:"type:text;not null;index" json:"status"`

	TerminationRequestedAt   *time.Time `json:"termination_requested_at,omitempty"`
	TerminationEffectiveDate *time.Time `json:"termination_effective_date,omitempty"`
	RemainingMonths          *int       `json:"remaining_months_at_termination,omitempty"`
	PenaltyAmount            *int64     `json:"penalty_amount,omitempty"`
	TerminationNotice        *string    `gorm:"type:text" json:"termination_notice,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }

// Tenant derives the tenant variant from the stored columns.
func (c *Contract) Tenant() Tenant {
	if c.UserID != nil && *c.UserID != "" {
		return MappedTenant(*c.UserID, c.Contact())
	}
	return UnmappedTenant(c.Contact())
}

func (c *Contract) Contact() Contact {
	return Contact{Name: c.TenantName, Phone: c.TenantPhone, Email: c.TenantEmail}
}

// TerminationTarget is the date the tenancy should end: the requested
// effective date, else the end date of a fixed-term contract. nil means
// there is no date to wait for.
func (c *Contract) TerminationTarget() *time.Time {
	if c.TerminationEffectiveDate != nil {
		d := *c.TerminationEffectiveDate
		return &d
	}
	if c.IsIndefinite {
		return nil
	}
	d := c.EndDate
	return &d
}

// Contact is the tenant's contact snapshot taken at creation.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type TenantKind string

const (
	TenantMapped   TenantKind = "mapped"
	TenantUnmapped TenantKind = "unmapped"
)

// Tenant is either Mapped to a user account or Unmapped, known only by the
// contact details given at booking time.
type Tenant struct {
	kind    TenantKind
	userID  string
	contact Contact
}

func MappedTenant(userID string, contact Contact) Tenant {
	return Tenant{kind: TenantMapped, userID: userID, contact: contact}
}

func UnmappedTenant(contact Contact) Tenant {
	return Tenant{kind: TenantUnmapped, contact: contact}
}

func (t Tenant) Kind() TenantKind { return t.kind }

// UserID reports the mapped user; ok is false for unmapped tenants.
func (t Tenant) UserID() (string, bool) {
	return t.userID, t.kind == TenantMapped
}

func (t Tenant) Contact() Contact { return t.contact }

type RequestType string

const (
	RequestTypeExtension   RequestType = "extension"
	RequestTypeTermination RequestType = "termination"
	RequestTypeOther       RequestType = "other"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusDone      RequestStatus = "done"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Open requests still wait for an admin decision or its follow-through.
func (s RequestStatus) Open() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

type RequestDetails struct {
	ExtensionMonths  int    `json:"extension_months,omitempty"`
	TerminationDate  string `json:"termination_date,omitempty"`
	RemainingMonths  *int   `json:"remaining_months,omitempty"`
	PenaltyAmount    *int64 `json:"penalty_amount,omitempty"`
	ConfirmationText string `json:"confirmation_text,omitempty"`
	Confirmed        bool   `json:"confirmed,omitempty"`
	Note             string `json:"note,omitempty"`
}

// ContractRequest is a tenant-initiated change awaiting an admin decision.
type ContractRequest struct {
	ID            snowflake.ID                       `gorm:"primaryKey" json:"id"`
	ContractID    snowflake.ID                       `gorm:"not null;index" json:"contract_id"`
	UserID        *string                            `gorm:"type:text" json:"user_id,omitempty"`
	Type          RequestType                        `gorm:"type:text;not null" json:"type"`
	Status        RequestStatus                      `gorm:"type:text;not null" json:"status"`
	Details       datatypes.JSONType[RequestDetails] `json:"details"`
	AdminResponse *string                            `gorm:"type:text" json:"admin_response,omitempty"`
	ProcessedAt   *time.Time                         `json:"processed_at,omitempty"`
	CreatedAt     time.Time                          `json:"created_at"`
	UpdatedAt     time.Time                          `json:"updated_at"`
}

func (ContractRequest) TableName() string { return "contract_requests" }
