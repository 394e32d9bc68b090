package orders

// Effect is the inventory adjustment a status transition requires.
type Effect int

const (
	EffectNone Effect = iota
	EffectReserve
	EffectRelease
)

// committed statuses are those past the point where the shop has accepted
// responsibility for fulfilling the order; stock must reflect them. The
// partition is defined once here, never re-derived at call sites.
var committed = map[Status]bool{
	StatusConfirmed: true,
	StatusPaid:      true,
	StatusPreparing: true,
	StatusShipped:   true,
	StatusCompleted: true,
	StatusReceived:  true,
}

func Committed(s Status) bool { return committed[s] }

// Decide maps a status transition to the required inventory effect. It is
// evaluated once per order and applied per line item; a failed reserve on any
// line must roll back the whole transition.
func Decide(from, to Status) Effect {
	switch {
	case !committed[from] && committed[to]:
		return EffectReserve
	case committed[from] && to == StatusCancelled:
		return EffectRelease
	default:
		return EffectNone
	}
}
