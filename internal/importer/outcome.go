package importer

// OutcomeKind classifies how a row concluded
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "Success"
	OutcomeDuplicate OutcomeKind = "Duplicate"
	OutcomeSkipped   OutcomeKind = "Skipped"
	OutcomeFailed    OutcomeKind = "Failed"
)

// RowOutcome is the terminal result of one row. Build it with the
// constructors below; it is never revised once recorded.
type RowOutcome struct {
	Kind      OutcomeKind `json:"kind"`
	ProductID string      `json:"productId,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Notes     []string    `json:"notes,omitempty"`
}

func Success(productID string, notes ...string) RowOutcome {
	return RowOutcome{Kind: OutcomeSuccess, ProductID: productID, Notes: notes}
}

func Duplicate(reason string, notes ...string) RowOutcome {
	return RowOutcome{Kind: OutcomeDuplicate, Reason: reason, Notes: notes}
}

func Skipped(reason string, notes ...string) RowOutcome {
	return RowOutcome{Kind: OutcomeSkipped, Reason: reason, Notes: notes}
}

func Failed(reason string, notes ...string) RowOutcome {
	return RowOutcome{Kind: OutcomeFailed, Reason: reason, Notes: notes}
}
