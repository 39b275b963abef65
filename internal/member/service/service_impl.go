package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/kassenwart/kassenwart/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p ServiceParam) memberdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("member.service"),
	}
}

func (s *Service) Get(ctx context.Context, memberID snowflake.ID) (memberdomain.Member, error) {
	var member memberdomain.Member
	err := s.db.WithContext(ctx).First(&member, "id = ?", memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return memberdomain.Member{}, memberdomain.ErrMemberNotFound
		}
		return memberdomain.Member{}, err
	}
	return member, nil
}

func (s *Service) ListMemberships(ctx context.Context, memberID snowflake.ID) ([]memberdomain.Membership, error) {
	var memberships []memberdomain.Membership
	err := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("start, id").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (s *Service) IsActive(ctx context.Context, memberID snowflake.ID, on time.Time) (bool, error) {
	memberships, err := s.ListMemberships(ctx, memberID)
	if err != nil {
		return false, err
	}
	for _, membership := range memberships {
		if membership.ActiveOn(on) {
			return true, nil
		}
	}
	return false, nil
}
