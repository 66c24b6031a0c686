package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/amlgate/internal/model"
)

const recordTransferCypher = `
MERGE (s:Account {id: $senderId})
MERGE (r:Account {id: $receiverId})
MERGE (s)-[t:TRANSFERRED {transferId: $transferId}]->(r)
SET t.amount = $amount,
    t.used = $used,
    t.refunded = $refunded,
    t.burned = $burned,
    t.notify = $notify,
    t.receiverFailed = $receiverFailed,
    t.settledAt = $settledAt
`

const counterpartiesCypher = `
MATCH (a:Account {id: $accountId})-[t:TRANSFERRED]-(c:Account)
WITH c.id AS account,
     count(t) AS transfers,
     sum(CASE WHEN startNode(t).id = $accountId THEN 1 ELSE 0 END) AS sent
RETURN account, transfers, sent
ORDER BY transfers DESC, account
LIMIT $limit
`

// DefaultCounterpartyLimit caps Counterparties when limit is not positive.
const DefaultCounterpartyLimit = 50

// Counterparty summarises the settled transfers between two accounts.
type Counterparty struct {
	Account   model.AccountID `json:"account"`
	Transfers int64           `json:"transfers"`
	Sent      int64           `json:"sent"`
}

// Recorder writes settled transfers to the graph.
type Recorder struct {
	client Client
	now    func() time.Time
}

// NewRecorder creates a Recorder over client.
func NewRecorder(client Client) *Recorder {
	return &Recorder{client: client, now: time.Now}
}

// RecordTransfer stores req as a TRANSFERRED edge. Amounts are decimal
// strings since they exceed the graph's integer range.
func (r *Recorder) RecordTransfer(ctx context.Context, req model.TransferRequest, s model.Settlement) error {
	if req.ID == "" {
		return errors.New("transfer id is required")
	}
	params := map[string]any{
		"transferId":     req.ID,
		"senderId":       string(req.Sender),
		"receiverId":     string(req.Receiver),
		"amount":         model.FormatAmount(req.Amount),
		"used":           model.FormatAmount(s.Used),
		"refunded":       model.FormatAmount(s.Refunded),
		"burned":         model.FormatAmount(s.Burned),
		"notify":         req.Notify,
		"receiverFailed": s.ReceiverFailed,
		"settledAt":      r.now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := r.client.ExecuteWrite(ctx, recordTransferCypher, params); err != nil {
		return fmt.Errorf("record transfer %s: %w", req.ID, err)
	}
	return nil
}

// Counterparties lists the accounts account has settled transfers with,
// busiest first.
func (r *Recorder) Counterparties(ctx context.Context, account model.AccountID, limit int) ([]Counterparty, error) {
	if limit <= 0 {
		limit = DefaultCounterpartyLimit
	}
	res, err := r.client.ExecuteRead(ctx, counterpartiesCypher, map[string]any{
		"accountId": string(account),
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("counterparties of %s: %w", account, err)
	}

	out := make([]Counterparty, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, Counterparty{
			Account:   model.AccountID(stringValue(rec["account"])),
			Transfers: intValue(rec["transfers"]),
			Sent:      intValue(rec["sent"]),
		})
	}
	return out, nil
}

// Close releases the underlying client.
func (r *Recorder) Close(ctx context.Context) error {
	return r.client.Close(ctx)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
