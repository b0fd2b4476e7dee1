package jobs

// Event represents a state change or progress update from a fetch job.
//
// For terminal events (Complete, Failed) the recorder persists a history
// record and clears job gauges. Progress events carry transient byte counts
// and do not mutate any persisted state.
type Event struct {
	AssetID  string    `json:"assetId"`
	Type     EventType `json:"type"`
	Progress *Progress `json:"progress,omitempty"`
	Err      string    `json:"error,omitempty"`
}

// EventType defines the set of events a fetch job may emit.
type EventType string

const (
	EventResolving   EventType = "Resolving"
	EventDownloading EventType = "Downloading"
	EventProgress    EventType = "Progress"
	EventComplete    EventType = "Complete"
	EventFailed      EventType = "Failed"
)

// Terminal reports whether t ends a job's lifecycle.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventFailed
}

// Progress carries byte counts for an in-flight download. Total is -1 when
// the upstream did not declare a length.
type Progress struct {
	Bytes int64 `json:"bytes"`
	Total int64 `json:"total"`
}

// Reporter publishes job events.
type Reporter interface {
	Report(Event)
}

// ChanReporter writes events to a channel.
type ChanReporter struct {
	ch chan<- Event
}

func NewChanReporter(ch chan<- Event) *ChanReporter { return &ChanReporter{ch: ch} }

func (r *ChanReporter) Report(e Event) {
	if r == nil {
		return
	}
	r.ch <- e
}

// NopReporter discards events.
type NopReporter struct{}

func (NopReporter) Report(Event) {}
