package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RoomType string

const (
	RoomTypeMonthly   RoomType = "monthly"
	RoomTypeTimeBased RoomType = "time_based"
	RoomTypeManager   RoomType = "manager"
)

type RoomStatus string

const (
	RoomStatusAvailable RoomStatus = "available"
	RoomStatusReserved  RoomStatus = "reserved"
	RoomStatusOccupied  RoomStatus = "occupied"
)

// Room is the rentable unit. Price is monthly, or hourly for time_based rooms.
type Room struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BranchName string       `gorm:"type:text" json:"branch_name"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Price      int64        `gorm:"not null" json:"price"`
	Deposit    int64        `gorm:"not null;default:0" json:"deposit"`
	Type       RoomType     `gorm:"type:text;not null;default:'monthly'" json:"room_type"`
	Status     RoomStatus   `gorm:"type:text;not null;default:'available'" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }

func (r Room) IsHourly() bool {
	return r.Type == RoomTypeTimeBased
}
