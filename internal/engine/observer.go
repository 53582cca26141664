package engine

import (
	"log/slog"

	"github.com/roach88/causeway/internal/queue"
)

// logObserver logs queue events at debug level.
type logObserver struct {
	log *slog.Logger
}

func newLogObserver(runID string) logObserver {
	return logObserver{log: slog.Default().With("run_id", runID)}
}

func (o logObserver) UnitInserted(u *queue.DeliveryUnit) {
	o.log.Debug("unit queued", "dots", u.String(), "size", u.Size())
}

func (o logObserver) UnitsMerged(merged *queue.DeliveryUnit, absorbed int) {
	o.log.Debug("cycle merged",
		"dots", merged.String(),
		"size", merged.Size(),
		"absorbed", absorbed,
	)
}

func (o logObserver) UnitDelivered(u *queue.DeliveryUnit) {
	o.log.Debug("unit deliverable", "dots", u.String(), "size", u.Size())
}

// fanout forwards every event to each observer in order.
type fanout []queue.Observer

func (f fanout) UnitInserted(u *queue.DeliveryUnit) {
	for _, o := range f {
		o.UnitInserted(u)
	}
}

func (f fanout) UnitsMerged(merged *queue.DeliveryUnit, absorbed int) {
	for _, o := range f {
		o.UnitsMerged(merged, absorbed)
	}
}

func (f fanout) UnitDelivered(u *queue.DeliveryUnit) {
	for _, o := range f {
		o.UnitDelivered(u)
	}
}
