package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventContractApplied      EventType = "CONTRACT_APPLIED"
	EventContractApproved     EventType = "CONTRACT_APPROVED"
	EventPaymentReminder      EventType = "PAYMENT_REMINDER"
	EventAutoRenewNotice      EventType = "AUTO_RENEW_NOTICE"
	EventMoveoutApplied       EventType = "MOVEOUT_APPLIED"
	EventMoveoutApproved      EventType = "MOVEOUT_APPROVED"
	EventMoveoutDay           EventType = "MOVEOUT_DAY"
	EventPaymentOverdueStage1 EventType = "PAYMENT_OVERDUE_STAGE1"
	EventPaymentOverdueStage2 EventType = "PAYMENT_OVERDUE_STAGE2"

	// EventManual tags admin free-text messages. It has no template.
	EventManual EventType = "MANUAL"
)

// VariableSchema lists the variables each template may reference.
var VariableSchema = map[EventType][]string{
	EventContractApplied:      {"user_name", "branch_name", "room_name"},
	EventContractApproved:     {"user_name", "branch_name", "room_name", "start_date", "due_date"},
	EventPaymentReminder:      {"user_name", "branch_name", "room_name", "due_date", "amount"},
	EventAutoRenewNotice:      {"user_name", "branch_name", "room_name", "end_date", "renew_deadline"},
	EventMoveoutApplied:       {"user_name", "branch_name", "room_name", "moveout_date"},
	EventMoveoutApproved:      {"user_name", "branch_name", "room_name", "moveout_date", "deposit_refund_date"},
	EventMoveoutDay:           {"user_name", "branch_name", "room_name"},
	EventPaymentOverdueStage1: {"user_name", "branch_name", "amount", "due_date"},
	EventPaymentOverdueStage2: {"user_name", "branch_name", "amount", "due_date"},
}

func (e EventType) Valid() bool {
	_, ok := VariableSchema[e]
	return ok
}

type Template struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Type           EventType    `gorm:"type:text;not null;uniqueIndex" json:"type"`
	Title          string       `gorm:"type:text" json:"title"`
	Content        string       `gorm:"type:text;not null" json:"content"`
	IsActive       bool         `gorm:"not null" json:"is_active"`
	ScheduleOffset int          `gorm:"not null" json:"schedule_offset"`
	UpdatedBy      *string      `gorm:"type:text" json:"updated_by,omitempty"`
	UpdatedReason  *string      `gorm:"type:text" json:"updated_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (Template) TableName() string { return "sms_templates" }

type LogStatus string

const (
	LogStatusPending LogStatus = "PENDING"
	LogStatusSent    LogStatus = "SENT"
	LogStatusFailed  LogStatus = "FAILED"
)

// Log is one delivery attempt. dedup_key is unique, so inserting the row
// claims the (event, contract, business date) slot.
type Log struct {
	ID                snowflake.ID                          `gorm:"primaryKey" json:"id"`
	ContractID        *snowflake.ID                         `gorm:"index" json:"contract_id,omitempty"`
	Type              EventType                             `gorm:"type:text;not null" json:"type"`
	DedupKey          string                                `gorm:"type:text;not null;uniqueIndex" json:"dedup_key"`
	RelatedDate       time.Time                             `gorm:"not null" json:"related_date"`
	Receiver          string                                `gorm:"type:text" json:"receiver"`
	ContentSnapshot   string                                `gorm:"type:text;not null" json:"content_snapshot"`
	ContextSnapshot   datatypes.JSONType[map[string]string] `json:"context_snapshot"`
	Status            LogStatus                             `gorm:"type:text;not null;index" json:"status"`
	Provider          *string                               `gorm:"type:text" json:"provider,omitempty"`
	ProviderMessageID *string                               `gorm:"type:text" json:"provider_message_id,omitempty"`
	ErrorMessage      *string                               `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time                             `json:"created_at"`
	UpdatedAt         time.Time                             `json:"updated_at"`
}

func (Log) TableName() string { return "sms_logs" }
