package llm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	llmclient "ticketforge/internal/llm/client"
)

// UsageLedger tracks LLM usage per UTC day and model in a JSON file.
// It survives restarts, unlike the per-run cost on a project.
type UsageLedger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

type usageLedgerFile struct {
	UpdatedAt string              `json:"updated_at"`
	Days      map[string]usageDay `json:"days"`
}

type usageDay struct {
	Requests  int64                `json:"requests"`
	TokensIn  int64                `json:"tokens_in"`
	TokensOut int64                `json:"tokens_out"`
	Errors    int64                `json:"errors"`
	Models    map[string]usageStat `json:"models"`
}

type usageStat struct {
	Requests  int64 `json:"requests"`
	TokensIn  int64 `json:"tokens_in"`
	TokensOut int64 `json:"tokens_out"`
	Errors    int64 `json:"errors"`
}

func NewUsageLedger(path string) *UsageLedger {
	return &UsageLedger{path: path, now: time.Now}
}

// WithUsageLedger records every call to the ledger at path. An empty path
// disables it.
func WithUsageLedger(path string) Middleware {
	ledger := NewUsageLedger(path)
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &usageLedgerClient{passthrough: passthrough{next}, ledger: ledger}
	}
}

type usageLedgerClient struct {
	passthrough
	ledger *UsageLedger
}

func (u *usageLedgerClient) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	out, err := u.next.Complete(ctx, req)
	if u.ledger.path != "" {
		u.ledger.record(u.next.Name(), int64(out.TokensIn), int64(out.TokensOut), err != nil)
	}
	return out, err
}

func (l *UsageLedger) record(model string, in, out int64, hasErr bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	dayKey := now.Format("2006-01-02")
	f := usageLedgerFile{Days: map[string]usageDay{}}
	if b, err := os.ReadFile(l.path); err == nil {
		_ = json.Unmarshal(b, &f)
		if f.Days == nil {
			f.Days = map[string]usageDay{}
		}
	}

	d := f.Days[dayKey]
	if d.Models == nil {
		d.Models = map[string]usageStat{}
	}
	m := d.Models[model]
	d.Requests++
	m.Requests++
	d.TokensIn += in
	m.TokensIn += in
	d.TokensOut += out
	m.TokensOut += out
	if hasErr {
		d.Errors++
		m.Errors++
	}
	d.Models[model] = m
	f.Days[dayKey] = d
	f.UpdatedAt = now.Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	tmp := l.path + ".tmp"
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, l.path)
}
