package snapshot

import "time"

// Rig is a monitored work environment shown on the dashboard.
type Rig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Agent is a worker attached to a rig.
type Agent struct {
	ID         string    `json:"id"`
	RigID      string    `json:"rigId"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Task       string    `json:"task,omitempty"`
	LastActive time.Time `json:"lastActive"`
}

// Issue is an open problem reported against a rig.
type Issue struct {
	ID        string    `json:"id"`
	RigID     string    `json:"rigId"`
	Title     string    `json:"title"`
	Severity  string    `json:"severity"`
	Assignee  string    `json:"assignee,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailMessage is an operator mailbox item.
type MailMessage struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Read    bool      `json:"read"`
	SentAt  time.Time `json:"sentAt"`
}

// ActivityEvent is one line of the activity feed.
type ActivityEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheStats is server-reported cache telemetry, passed through for
// display only. The core never interprets these numbers.
type CacheStats struct {
	Entries          map[string]int   `json:"entries"`
	Hits             int64            `json:"hits"`
	Misses           int64            `json:"misses"`
	TTLs             map[string]int64 `json:"ttls"`
	LastInvalidation int64            `json:"lastInvalidation"`
}

// Snapshot is a complete, self-consistent replacement of all tracked
// dashboard state, delivered over the push channel. Deltas or partial
// snapshots are not supported: each arrival replaces the prior
// snapshot wholesale.
type Snapshot struct {
	Rigs       []Rig                `json:"rigs"`
	Agents     map[string][]Agent   `json:"agents"`
	Issues     map[string][]Issue   `json:"issues"`
	Mail       []MailMessage        `json:"mail"`
	Activity   []ActivityEvent      `json:"activity"`
	CacheStats *CacheStats          `json:"cacheStats"`
}
