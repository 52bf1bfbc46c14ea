package constant

const (
	ConversationStatusActive = "active"
	ConversationStatusEnded  = "ended"

	TicketStatusOpen      = "open"
	TicketStatusEscalated = "escalated"
	TicketStatusResolved  = "resolved"

	TicketContextKindCreated    = "created"
	TicketContextKindEscalation = "escalation"
	TicketContextKindNote       = "note"
)

const (
	SourceTypeUrl      = "Url"
	SourceTypeDocument = "Document"
	SourceTypeText     = "Text"
)

const (
	IngestStatusPending    = "Pending"
	IngestStatusProcessing = "Processing"
	IngestStatusCompleted  = "Completed"
	IngestStatusFailed     = "Failed"
)

var ingestStatusRank = map[string]int{
	IngestStatusPending:    0,
	IngestStatusProcessing: 1,
	IngestStatusCompleted:  2,
	IngestStatusFailed:     2,
}

// CanTransitionIngest reports whether a document may move from one status to another.
// Completed and Failed are terminal.
func CanTransitionIngest(from, to string) bool {
	f, ok := ingestStatusRank[from]
	if !ok {
		return false
	}
	t, ok := ingestStatusRank[to]
	if !ok {
		return false
	}
	if from == IngestStatusCompleted || from == IngestStatusFailed {
		return false
	}
	return t > f
}

func IsValidSourceType(s string) bool {
	return s == SourceTypeUrl || s == SourceTypeDocument || s == SourceTypeText
}
