package availability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var availabilityTracer = otel.Tracer("medtour.internal.availability")

type slotLister interface {
	ListByDate(ctx context.Context, date string) ([]Slot, error)
}

// Service answers availability lookups, reading through the cache when one
// is configured. Cache failures are logged and fall back to the database.
type Service struct {
	repo   slotLister
	cache  *Cache
	logger *logging.Logger
}

func NewService(repo slotLister, cache *Cache, logger *logging.Logger) *Service {
	if repo == nil {
		panic("availability: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ForDate lists the slots for date (YYYY-MM-DD) ordered by time.
func (s *Service) ForDate(ctx context.Context, date string) ([]Slot, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	ctx, span := availabilityTracer.Start(ctx, "availability.for_date")
	defer span.End()
	span.SetAttributes(attribute.String("medtour.slot_date", date))

	if s.cache != nil {
		slots, ok, err := s.cache.Get(ctx, date)
		if err != nil {
			s.logger.Warn("availability cache read failed", "error", err, "date", date)
		} else if ok {
			span.SetAttributes(attribute.Bool("medtour.cache_hit", true))
			return slots, nil
		}
	}

	slots, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, date, slots); err != nil {
			s.logger.Warn("availability cache write failed", "error", err, "date", date)
		}
	}
	return slots, nil
}

// Invalidate drops the cached listing for date after its capacity changed.
func (s *Service) Invalidate(ctx context.Context, date string) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, date); err != nil {
		s.logger.Warn("availability cache invalidate failed", "error", err, "date", date)
	}
}
