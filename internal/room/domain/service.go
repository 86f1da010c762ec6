package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

// Provider is what the contract core needs from rooms.
type Provider interface {
	GetRoom(ctx context.Context, id snowflake.ID) (*Room, error)
	// SyncStatus runs on the caller's transaction so occupancy moves with the contract.
	SyncStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status RoomStatus) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, room *Room) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Room, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status RoomStatus) (int64, error)
}

var (
	ErrRoomNotFound = errors.New("room_not_found")
	ErrInvalidRoom  = errors.New("invalid_room")
)
