package queue

// Observer receives queue events. Implementations must be cheap: they run
// inline on the goroutine that owns the queue.
type Observer interface {
	// UnitInserted is called when a unit is placed in the queue without merging.
	UnitInserted(unit *DeliveryUnit)

	// UnitsMerged is called when a cycle merge replaced absorbed existing
	// units and the incoming unit with merged.
	UnitsMerged(merged *DeliveryUnit, absorbed int)

	// UnitDelivered is called for every unit popped from the head.
	UnitDelivered(unit *DeliveryUnit)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) UnitInserted(*DeliveryUnit)     {}
func (NopObserver) UnitsMerged(*DeliveryUnit, int) {}
func (NopObserver) UnitDelivered(*DeliveryUnit)    {}

// Stats counts what a queue has done since creation.
type Stats struct {
	// Added counts calls to Add, successful or not.
	Added int `json:"added"`
	// Inserted counts units placed without a merge.
	Inserted int `json:"inserted"`
	// Merges counts cycle merges.
	Merges int `json:"merges"`
	// Absorbed counts existing units folded into merged units.
	Absorbed int `json:"absorbed"`
	// Delivered counts delivered units.
	Delivered int `json:"delivered"`
	// DeliveredDots counts operations in delivered units.
	DeliveredDots int `json:"delivered_dots"`
	// Rejected counts Add calls that failed with an invariant error.
	Rejected int `json:"rejected"`
}

// Option configures a queue.
type Option func(*DependencyQueue)

// WithObserver installs an observer. nil restores the no-op observer.
func WithObserver(o Observer) Option {
	return func(q *DependencyQueue) {
		if o == nil {
			o = NopObserver{}
		}
		q.observer = o
	}
}
