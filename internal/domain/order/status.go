package order

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

// statusSequence is the linear fulfilment progression. There are no branches
// and no terminal-failure state.
var statusSequence = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

// ValidStatus reports whether s is one of the four known statuses.
func ValidStatus(s Status) bool {
	for _, known := range statusSequence {
		if s == known {
			return true
		}
	}
	return false
}

// NextStatus returns the status following current in the fulfilment sequence.
// It is total: the terminal status and unrecognized values map to themselves.
func NextStatus(current Status) Status {
	for i, s := range statusSequence {
		if s == current && i+1 < len(statusSequence) {
			return statusSequence[i+1]
		}
	}
	return current
}
