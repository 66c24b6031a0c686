package audit

// StateAccountClosed marks an account closure. Its settlement carries the
// balance burned by a forced close.
const StateAccountClosed = "account_closed"

// AuditTransfer is the transfer described by an audit entry.
type AuditTransfer struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Notify   bool   `json:"notify,omitempty"`
}

// AuditSettlement is the resolved outcome of a transfer-with-notification.
type AuditSettlement struct {
	Used     string `json:"used"`
	Refunded string `json:"refunded"`
	Burned   string `json:"burned"`
}

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type AuditEntry struct {
	Timestamp  string           `json:"ts"`
	TransferID string           `json:"transfer_id"`
	Transfer   AuditTransfer    `json:"transfer"`
	State      string           `json:"state"`
	Category   string           `json:"category,omitempty"`
	Score      int              `json:"score,omitempty"`
	Settlement *AuditSettlement `json:"settlement,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	ConfigHash string           `json:"config_hash"`
	PrevHash   string           `json:"prev_hash"`
}
