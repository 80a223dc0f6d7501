package core

// Config is the whole bot configuration. The file may be JSON or YAML; YAML
// is coerced to JSON so both formats share the strict decoder.
type Config struct {
	Bridge    BridgeConfig    `json:"bridge"`
	Session   SessionConfig   `json:"session"`
	Store     StoreConfig     `json:"store"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Timetable TimetableConfig `json:"timetable"`
	Logging   LoggingConfig   `json:"logging"`
	Health    HealthConfig    `json:"health"`
}

type BridgeConfig struct {
	// URL of the local multi-device bridge websocket, e.g. "ws://127.0.0.1:8055/ws".
	URL string `json:"url"`
	// HandshakeTimeout is a Go duration string (e.g. "30s").
	HandshakeTimeout string `json:"handshake_timeout"`
	// SendRatePerSec throttles outbound messages (platforms ban chatty bots).
	SendRatePerSec int `json:"send_rate_per_sec"`
}

type SessionConfig struct {
	// GroupName is matched exactly against the names of all joined groups.
	GroupName string `json:"group_name"`
	// ReconnectMinDelay/ReconnectMaxDelay bound the reconnect backoff.
	// Go duration strings; defaults "2s" and "5m".
	ReconnectMinDelay string `json:"reconnect_min_delay"`
	ReconnectMaxDelay string `json:"reconnect_max_delay"`
}

type StoreConfig struct {
	// Driver: "file" (default) or "sqlite" (requires the sqlite build tag).
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

// ScheduleConfig is the broadcast cadence expressed as configuration.
type ScheduleConfig struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
	// Days is a cron day-of-week field, e.g. "1-5" for weekday mornings.
	Days     string `json:"days"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Africa/Lagos"
	// Timeout is a Go duration string bounding one broadcast run.
	Timeout string `json:"timeout"`
}

type TimetableEntry struct {
	Course  string `json:"course"`
	Time    string `json:"time"`
	Program string `json:"program"`
}

type TimetableConfig struct {
	Banner string `json:"banner"`
	// Days maps lowercase weekday names ("monday".."sunday") to ordered entries.
	Days map[string][]TimetableEntry `json:"days"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// LoggingChat mirrors WARN+ log lines into an ops group chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	GroupJID   string `json:"group_jid"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}
