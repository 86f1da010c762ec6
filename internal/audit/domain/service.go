package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eroom/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListHistoryRequest struct {
	pagination.Pagination
	ContractID snowflake.ID
}

type ListHistoryResponse struct {
	pagination.PageInfo
	History []StatusHistory `json:"history"`
}

// Sink records contract status changes. Append runs on the caller's
// transaction so the row commits or rolls back with the status change.
type Sink interface {
	Append(ctx context.Context, db *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListHistoryRequest) (ListHistoryResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, row *StatusHistory) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*StatusHistory, error)
}

var (
	ErrInvalidContract  = errors.New("invalid_contract")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
