package service

import (
	"context"
	"errors"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/reservation"
	"reservation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockReader reads the persisted available-to-promise count.
type StockReader interface {
	GetStock(ctx context.Context, productID int64) (int, error)
}

// EventSink receives domain events. Publishing is fire-and-forget from the
// caller's point of view: failures are logged, never propagated.
type EventSink interface {
	PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error
	PublishReservationReleased(ctx context.Context, event *models.ReservationReleasedEvent) error
}

// ReservationService owns the hold lifecycle: create/extend, release, list
// and the opportunistic expiry sweep.
type ReservationService struct {
	holds  reservation.HoldStore
	stock  StockReader
	events EventSink
	clk    clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(
	holds reservation.HoldStore,
	stock StockReader,
	events EventSink,
	clk clock.Clock,
	ttl time.Duration,
) *ReservationService {
	return &ReservationService{
		holds:  holds,
		stock:  stock,
		events: events,
		clk:    clk,
		ttl:    ttl,
		logger: util.NamedLogger("reservation"),
	}
}

// ReserveItemRequest is one line of a reservation batch
type ReserveItemRequest struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// ReserveItemResult reports the outcome for a single item. Available carries
// the post-hold count on success and the computed availability on rejection,
// so callers can retry with a smaller quantity.
type ReserveItemResult struct {
	ProductID int64  `json:"product_id"`
	Success   bool   `json:"success"`
	Available int    `json:"available"`
	Error     string `json:"error,omitempty"`
}

// ReserveResponse is the batch outcome
type ReserveResponse struct {
	Results     []ReserveItemResult `json:"results"`
	ExpiresAt   time.Time           `json:"expires_at"`
	ActiveHolds int                 `json:"active_holds"`
}

// ActiveHold is a hold with its remaining lifetime, for the diagnostic list.
type ActiveHold struct {
	models.Hold
	SecondsRemaining int `json:"seconds_remaining"`
}

// Reserve attempts to hold stock for each item in the batch. Items are
// independent: one item failing on capacity does not abort the others.
func (s *ReservationService) Reserve(ctx context.Context, sessionID string, items []ReserveItemRequest) (*ReserveResponse, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if expired, err := s.holds.Sweep(ctx); err != nil {
		s.logger.Warn("Expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		util.HoldsExpiredTotal.Add(float64(expired))
	}

	results := make([]ReserveItemResult, 0, len(items))
	var succeeded []models.ReservationItemData

	for _, item := range items {
		result := s.reserveItem(ctx, sessionID, item)
		results = append(results, result)
		if result.Success {
			succeeded = append(succeeded, models.ReservationItemData{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
			})
		}
	}

	expiresAt := s.clk.Now().Add(s.ttl)

	if len(succeeded) > 0 {
		s.notifyReservationCreated(ctx, sessionID, succeeded, expiresAt)
	}

	active, err := s.holds.List(ctx)
	if err != nil {
		s.logger.Warn("Failed to count active holds", zap.Error(err))
	}

	return &ReserveResponse{
		Results:     results,
		ExpiresAt:   expiresAt,
		ActiveHolds: len(active),
	}, nil
}

func (s *ReservationService) reserveItem(ctx context.Context, sessionID string, item ReserveItemRequest) ReserveItemResult {
	if item.ProductID <= 0 {
		util.ReservationsRejectedTotal.WithLabelValues("invalid").Inc()
		return ReserveItemResult{ProductID: item.ProductID, Error: models.ErrMissingProduct.Error()}
	}
	if item.Quantity <= 0 {
		util.ReservationsRejectedTotal.WithLabelValues("invalid").Inc()
		return ReserveItemResult{ProductID: item.ProductID, Error: models.ErrInvalidQuantity.Error()}
	}

	stock, err := s.stock.GetStock(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			util.ReservationsRejectedTotal.WithLabelValues("not_found").Inc()
			return ReserveItemResult{ProductID: item.ProductID, Error: models.ErrProductNotFound.Error()}
		}
		util.ReservationsRejectedTotal.WithLabelValues("stock_error").Inc()
		s.logger.Error("Stock lookup failed",
			zap.Int64("product_id", item.ProductID),
			zap.Error(err))
		return ReserveItemResult{ProductID: item.ProductID, Error: "stock lookup failed"}
	}

	available, ok, err := s.holds.Reserve(ctx, sessionID, item.ProductID, item.ProductName, item.Quantity, stock, s.ttl)
	if err != nil {
		util.ReservationsRejectedTotal.WithLabelValues("store_error").Inc()
		s.logger.Error("Hold store reserve failed",
			zap.Int64("product_id", item.ProductID),
			zap.Error(err))
		return ReserveItemResult{ProductID: item.ProductID, Error: "reservation store failed"}
	}

	if !ok {
		util.ReservationsRejectedTotal.WithLabelValues("capacity").Inc()
		ise := &models.InsufficientStockError{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Requested:   item.Quantity,
			Available:   available,
		}
		return ReserveItemResult{ProductID: item.ProductID, Available: available, Error: ise.Error()}
	}

	util.ReservationsCreatedTotal.Inc()
	s.logger.Info("Hold placed",
		zap.String("session_id", sessionID),
		zap.Int64("product_id", item.ProductID),
		zap.Int("quantity", item.Quantity),
		zap.Int("available_after", available))

	return ReserveItemResult{ProductID: item.ProductID, Success: true, Available: available}
}

func (s *ReservationService) notifyReservationCreated(ctx context.Context, sessionID string, items []models.ReservationItemData, expiresAt time.Time) {
	event := &models.ReservationCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReservationCreated,
			Timestamp: s.clk.Now(),
		},
		SessionID: sessionID,
		Items:     items,
		ExpiresAt: expiresAt,
	}

	if err := s.events.PublishReservationCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationCreated event", zap.Error(err))
	}
}

// Release removes every hold owned by the session. Idempotent: a session
// with no holds releases zero.
func (s *ReservationService) Release(ctx context.Context, sessionID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Release")
	defer span.End()

	removed, err := s.holds.ReleaseSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		util.HoldsReleasedTotal.Add(float64(removed))
		s.logger.Info("Holds released",
			zap.String("session_id", sessionID),
			zap.Int("removed", removed))

		event := &models.ReservationReleasedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeReservationReleased,
				Timestamp: s.clk.Now(),
			},
			SessionID: sessionID,
			Released:  removed,
		}
		if err := s.events.PublishReservationReleased(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReservationReleased event", zap.Error(err))
		}
	}

	return removed, nil
}

// List returns all active holds with their remaining seconds, for inspection.
func (s *ReservationService) List(ctx context.Context) ([]ActiveHold, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.List")
	defer span.End()

	if expired, err := s.holds.Sweep(ctx); err != nil {
		s.logger.Warn("Expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		util.HoldsExpiredTotal.Add(float64(expired))
	}

	holds, err := s.holds.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	active := make([]ActiveHold, 0, len(holds))
	for _, h := range holds {
		remaining := int(h.ExpiresAt.Sub(now).Seconds())
		if remaining < 0 {
			continue
		}
		active = append(active, ActiveHold{Hold: h, SecondsRemaining: remaining})
	}
	return active, nil
}
