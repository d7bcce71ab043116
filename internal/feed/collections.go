package feed

// Collection names for records published on the feed. Settings and proposal
// collections are owned by the negotiation package.
const (
	CollectionCheckIns  = "checkins"
	CollectionBookends  = "bookends"
	CollectionReminders = "reminders"
)
