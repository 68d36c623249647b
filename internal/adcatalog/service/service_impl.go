package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/spotlight/internal/adcatalog/domain"
	"github.com/smallbiznis/spotlight/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("adcatalog.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// NewDirectory exposes the service as the narrow eligibility interface.
func NewDirectory(svc domain.Service) domain.Directory {
	return svc
}

// IsEligible returns false for unknown ads rather than an error.
func (s *Service) IsEligible(ctx context.Context, adID snowflake.ID) (bool, error) {
	if adID <= 0 {
		return false, nil
	}
	ad, err := s.repo.Get(ctx, s.db, adID)
	if err != nil {
		return false, err
	}
	if ad == nil {
		return false, nil
	}
	return ad.Eligible(), nil
}

func (s *Service) CategoryOf(ctx context.Context, adID snowflake.ID) (string, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return "", err
	}
	return ad.Category, nil
}

func (s *Service) Get(ctx context.Context, adID snowflake.ID) (*domain.Ad, error) {
	if adID <= 0 {
		return nil, domain.ErrInvalidAd
	}
	ad, err := s.repo.Get(ctx, s.db, adID)
	if err != nil {
		return nil, err
	}
	if ad == nil {
		return nil, domain.ErrAdNotFound
	}
	return ad, nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Ad, error) {
	if req.AdID <= 0 || req.AccountID <= 0 {
		return nil, domain.ErrInvalidAd
	}
	status, ok := normalizeStatus(req.Status)
	if !ok {
		return nil, domain.ErrInvalidAd
	}

	ad := &domain.Ad{
		ID:        req.AdID,
		AccountID: req.AccountID,
		Category:  slug.Make(req.Category),
		Status:    status,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, s.db, ad); err != nil {
		return nil, err
	}

	s.log.Debug("ad snapshot stored",
		zap.String("ad_id", ad.ID.String()),
		zap.String("status", string(ad.Status)),
		zap.String("category", ad.Category),
	)
	return ad, nil
}

func normalizeStatus(status domain.Status) (domain.Status, bool) {
	switch domain.Status(strings.ToLower(strings.TrimSpace(string(status)))) {
	case domain.StatusActive:
		return domain.StatusActive, true
	case domain.StatusPaused:
		return domain.StatusPaused, true
	case domain.StatusPending:
		return domain.StatusPending, true
	case domain.StatusRemoved:
		return domain.StatusRemoved, true
	default:
		return "", false
	}
}
