package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CustomDiscount lowers one month's charge of one contract. (contract_id,
// target_month) is unique; writes replace the existing row.
type CustomDiscount struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ContractID  snowflake.ID `gorm:"not null;uniqueIndex:ux_custom_discounts_contract_month" json:"contract_id"`
	TargetMonth string       `gorm:"type:text;not null;uniqueIndex:ux_custom_discounts_contract_month" json:"target_month"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Reason      string       `gorm:"type:text" json:"reason"`
	AdminID     *string      `gorm:"type:text" json:"admin_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (CustomDiscount) TableName() string { return "contract_custom_discounts" }
