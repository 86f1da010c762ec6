package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

func (t ActorType) Valid() bool {
	switch t {
	case ActorTypeUser, ActorTypeAdmin, ActorTypeSystem:
		return true
	}
	return false
}

// StatusHistory is one append-only row per contract status mutation. Snowflake
// ids grow monotonically, so id order is application order.
type StatusHistory struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ContractID snowflake.ID `gorm:"not null;index:idx_status_history_contract" json:"contract_id"`
	OldStatus  string       `gorm:"type:text" json:"old_status"`
	NewStatus  string       `gorm:"type:text;not null" json:"new_status"`
	ActorType  ActorType    `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string      `gorm:"type:text" json:"actor_id,omitempty"`
	Source     string       `gorm:"type:text;not null" json:"source"`
	Reason     *string      `gorm:"type:text" json:"reason,omitempty"`
	RequestID  *string      `gorm:"type:text" json:"request_id,omitempty"`
	IPAddress  *string      `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string      `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (StatusHistory) TableName() string { return "contract_status_history" }

// Entry is what callers hand to the sink. Actor and channel come from the
// request context.
type Entry struct {
	ContractID snowflake.ID
	OldStatus  string
	NewStatus  string
	Reason     string
}

type HistoryCursor struct {
	ID snowflake.ID
}

type ListFilter struct {
	ContractID snowflake.ID
	Cursor     *HistoryCursor
	Limit      int
}
