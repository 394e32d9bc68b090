package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusPreparing  Status = "preparing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusReceived   Status = "received"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusProcessing: true, StatusPaid: true, StatusCancelled: true},
	StatusConfirmed:  {StatusPaid: true, StatusCancelled: true},
	StatusProcessing: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:       {StatusPreparing: true, StatusShipped: true, StatusCompleted: true, StatusReceived: true, StatusCancelled: true},
	StatusPreparing:  {StatusShipped: true, StatusCompleted: true, StatusReceived: true, StatusCancelled: true},
	StatusShipped:    {StatusCompleted: true, StatusReceived: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusReceived:   {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusReceived
}

// CanTransition reports whether from -> to is a legal move. A self-transition
// is allowed and treated as a no-op by the reconciliation policy, so retried
// requests stay idempotent.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	return validNext[from][to]
}
