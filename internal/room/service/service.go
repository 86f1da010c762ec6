package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/internal/errs"
	"github.com/smallbiznis/eroom/internal/room/domain"
	"github.com/smallbiznis/eroom/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Provider {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("room.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetRoom(ctx context.Context, id snowflake.ID) (*domain.Room, error) {
	if id == 0 {
		return nil, errs.Validation(domain.ErrInvalidRoom)
	}
	room, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Classify(err)
	}
	if room == nil {
		return nil, errs.NotFound(domain.ErrRoomNotFound)
	}
	return room, nil
}

func (s *Service) SyncStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.RoomStatus) error {
	if tx == nil {
		tx = s.db
	}
	rows, err := s.repo.UpdateStatus(ctx, tx, id, status)
	if err != nil {
		return fmt.Errorf("sync room %s to %s: %w", id, status, db.Classify(err))
	}
	if rows == 0 {
		return errs.NotFound(domain.ErrRoomNotFound)
	}
	return nil
}
