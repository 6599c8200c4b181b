package ledger

// Store persists a Status. Save is called after every item transition and
// must replace the previous state atomically.
type Store interface {
	// Load returns the persisted status, or an empty one when nothing was saved yet
	Load() (*Status, error)

	// Save stamps LastUpdate and overwrites the persisted status
	Save(status *Status) error
}
