package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Get(ctx context.Context, memberID snowflake.ID) (Member, error)
	ListMemberships(ctx context.Context, memberID snowflake.ID) ([]Membership, error)
	IsActive(ctx context.Context, memberID snowflake.ID, on time.Time) (bool, error)
}

var (
	ErrMemberNotFound            = errors.New("member_not_found")
	ErrInvalidMembershipPeriod   = errors.New("invalid_membership_period")
	ErrInvalidMembershipAmount   = errors.New("invalid_membership_amount")
	ErrInvalidFeeInterval        = errors.New("invalid_fee_interval")
	ErrOverlappingBalanceWindow  = errors.New("overlapping_balance_window")
	ErrDuplicateBalanceReference = errors.New("duplicate_balance_reference")
)
