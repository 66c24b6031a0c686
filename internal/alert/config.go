package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["tokens_burned", "aml_rejected", ...]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event types.
const (
	EventTokensBurned       = "tokens_burned"
	EventAMLRejected        = "aml_rejected"
	EventOracleFailure      = "oracle_failure"
	EventConfigurationError = "configuration_error"
)

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
	TransferID string `json:"transfer_id,omitempty"`
	Account    string `json:"account"`
	Receiver   string `json:"receiver,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Category   string `json:"category,omitempty"`
	Score      int    `json:"score,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
}
