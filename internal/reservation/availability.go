package reservation

import (
	"time"

	"reservation-service/internal/models"
)

// Available computes how many units of a product a session may still reserve:
// the persisted count minus unexpired holds from other sessions. The
// requesting session's own hold is excluded so it can re-affirm or grow its
// claim instead of stacking on top of it. Never negative.
func Available(persisted int, holds []models.Hold, excludeSessionID string, productID int64, now time.Time) int {
	held := 0
	for _, h := range holds {
		if h.ProductID != productID {
			continue
		}
		if h.SessionID == excludeSessionID {
			continue
		}
		if h.Expired(now) {
			continue
		}
		held += h.Quantity
	}
	if avail := persisted - held; avail > 0 {
		return avail
	}
	return 0
}
