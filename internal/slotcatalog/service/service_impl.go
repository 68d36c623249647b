package service

import (
	"context"

	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/cache"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/internal/config"
	"github.com/smallbiznis/spotlight/internal/slotcatalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Cache    cache.PriceCache
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	cache    cache.PriceCache
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	priceCache := p.Cache
	if priceCache == nil {
		priceCache = cache.NewPriceCache()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("slotcatalog.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		cache:    priceCache,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) PriceFor(ctx context.Context, placement string, durationDays int) (domain.Price, bool, error) {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) || !domain.IsAllowedDuration(durationDays) {
		return domain.Price{}, false, nil
	}

	if cost, ok := s.cache.GetPrice(placement, durationDays); ok {
		return domain.Price{Placement: placement, DurationDays: durationDays, CreditCost: cost}, true, nil
	}

	ticket := s.cache.Ticket(placement)
	row, err := s.repo.GetPrice(ctx, s.db, placement, durationDays)
	if err != nil {
		return domain.Price{}, false, err
	}
	if row == nil {
		return domain.Price{}, false, nil
	}
	s.cache.FillPrice(placement, durationDays, row.CreditCost, ticket)
	return domain.Price{Placement: placement, DurationDays: durationDays, CreditCost: row.CreditCost}, true, nil
}

func (s *Service) CapacityFor(ctx context.Context, placement string) (int, error) {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) {
		return 0, domain.ErrInvalidPlacement
	}
	row, err := s.repo.GetPlacement(ctx, s.db, placement)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, domain.ErrInvalidPlacement
	}
	return row.Capacity, nil
}

func (s *Service) LockPlacement(ctx context.Context, tx *gorm.DB, placement string) (*domain.Placement, error) {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) {
		return nil, domain.ErrInvalidPlacement
	}
	row, err := s.repo.LockPlacement(ctx, tx, placement)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrInvalidPlacement
	}
	return row, nil
}

func (s *Service) List(ctx context.Context) (domain.Catalog, error) {
	placements, err := s.repo.ListPlacements(ctx, s.db)
	if err != nil {
		return domain.Catalog{}, err
	}
	prices, err := s.repo.ListPrices(ctx, s.db)
	if err != nil {
		return domain.Catalog{}, err
	}

	byPlacement := make(map[string][]domain.Price, len(placements))
	for _, price := range prices {
		byPlacement[price.Placement] = append(byPlacement[price.Placement], domain.Price{
			Placement:    price.Placement,
			DurationDays: price.DurationDays,
			CreditCost:   price.CreditCost,
		})
	}

	catalog := domain.Catalog{Placements: make([]domain.PlacementView, 0, len(placements))}
	for _, placement := range placements {
		view := domain.PlacementView{
			Placement: placement.Name,
			Capacity:  placement.Capacity,
			Prices:    byPlacement[placement.Name],
		}
		if view.Prices == nil {
			view.Prices = []domain.Price{}
		}
		catalog.Placements = append(catalog.Placements, view)
	}
	return catalog, nil
}

func (s *Service) SetCapacity(ctx context.Context, placement string, capacity int) (*domain.Placement, error) {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) {
		return nil, domain.ErrInvalidPlacement
	}
	if capacity < 0 {
		return nil, domain.ErrInvalidCapacity
	}

	row := &domain.Placement{
		Name:      placement,
		Capacity:  capacity,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.UpsertPlacement(ctx, s.db, row); err != nil {
		return nil, err
	}

	s.log.Info("placement capacity updated", zap.String("placement", placement), zap.Int("capacity", capacity))
	s.audit(ctx, "catalog.capacity_updated", placement, map[string]any{"capacity": capacity})
	return row, nil
}

func (s *Service) SetPrice(ctx context.Context, placement string, durationDays int, creditCost int64) (*domain.SlotPrice, error) {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) {
		return nil, domain.ErrInvalidPlacement
	}
	if !domain.IsAllowedDuration(durationDays) {
		return nil, domain.ErrInvalidDuration
	}
	if creditCost <= 0 {
		return nil, domain.ErrInvalidCreditCost
	}

	existing, err := s.repo.GetPlacement(ctx, s.db, placement)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrInvalidPlacement
	}

	row := &domain.SlotPrice{
		Placement:    placement,
		DurationDays: durationDays,
		CreditCost:   creditCost,
		UpdatedAt:    s.clock.Now().UTC(),
	}
	if err := s.repo.UpsertPrice(ctx, s.db, row); err != nil {
		return nil, err
	}
	s.cache.InvalidatePlacement(placement)

	s.log.Info("slot price updated",
		zap.String("placement", placement),
		zap.Int("duration_days", durationDays),
		zap.Int64("credit_cost", creditCost),
	)
	s.audit(ctx, "catalog.price_updated", placement, map[string]any{
		"duration_days": durationDays,
		"credit_cost":   creditCost,
	})
	return row, nil
}

func (s *Service) DeletePrice(ctx context.Context, placement string, durationDays int) error {
	placement = domain.NormalizePlacement(placement)
	if !domain.IsKnownPlacement(placement) {
		return domain.ErrInvalidPlacement
	}
	if !domain.IsAllowedDuration(durationDays) {
		return domain.ErrInvalidDuration
	}

	affected, err := s.repo.DeletePrice(ctx, s.db, placement, durationDays)
	if err != nil {
		return err
	}
	s.cache.InvalidatePlacement(placement)
	if affected == 0 {
		return domain.ErrPriceNotFound
	}

	s.audit(ctx, "catalog.price_deleted", placement, map[string]any{"duration_days": durationDays})
	return nil
}

// Sync upserts every placement and price from cfg. Rows absent from cfg are kept.
func (s *Service) Sync(ctx context.Context, cfg config.CatalogConfig) error {
	if err := config.ValidateCatalogConfig(cfg); err != nil {
		return err
	}
	for _, placement := range cfg.Placements {
		if !domain.IsKnownPlacement(placement.Name) {
			return domain.ErrInvalidPlacement
		}
		for _, price := range placement.Prices {
			if !domain.IsAllowedDuration(price.DurationDays) {
				return domain.ErrInvalidDuration
			}
		}
	}

	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, placement := range cfg.Placements {
			name := domain.NormalizePlacement(placement.Name)
			if err := s.repo.UpsertPlacement(ctx, tx, &domain.Placement{
				Name:      name,
				Capacity:  placement.Capacity,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			for _, price := range placement.Prices {
				if err := s.repo.UpsertPrice(ctx, tx, &domain.SlotPrice{
					Placement:    name,
					DurationDays: price.DurationDays,
					CreditCost:   price.CreditCost,
					UpdatedAt:    now,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Purge()

	s.log.Info("slot catalog synced", zap.Int("placements", len(cfg.Placements)))
	return nil
}

func (s *Service) audit(ctx context.Context, action string, placement string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, auditdomain.TargetPlacement, &placement, metadata); err != nil {
		s.log.Warn("failed to write catalog audit log", zap.String("action", action), zap.Error(err))
	}
}
