package llm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	llmclient "ticketforge/internal/llm/client"
)

func TestUsageLedgerDaily_AggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage", "llm_usage_daily.json")

	base := &flakyClient{}
	cli := Wrap(base, WithUsageLedger(path))
	if _, err := cli.Complete(context.Background(), llmclient.Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	failing := &flakyClient{failures: 1, err: errors.New("boom")}
	cli2 := Wrap(failing, WithUsageLedger(path))
	if _, err := cli2.Complete(context.Background(), llmclient.Request{}); err == nil {
		t.Fatalf("expected error call")
	}
	if _, err := cli2.Complete(context.Background(), llmclient.Request{}); err != nil {
		t.Fatalf("third call: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	var f usageLedgerFile
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(f.Days) != 1 {
		t.Fatalf("days=%d want=1", len(f.Days))
	}
	for _, d := range f.Days {
		if d.Requests != 3 || d.Errors != 1 {
			t.Fatalf("unexpected day totals %+v", d)
		}
		if d.TokensIn != 20 || d.TokensOut != 10 {
			t.Fatalf("token totals in=%d out=%d want 20/10", d.TokensIn, d.TokensOut)
		}
		st := d.Models["mock:flaky"]
		if st.Requests != 3 {
			t.Fatalf("model stat %+v", st)
		}
	}
}

func TestUsageLedger_DisabledWithoutPath(t *testing.T) {
	cli := Wrap(&flakyClient{}, WithUsageLedger(""))
	if _, err := cli.Complete(context.Background(), llmclient.Request{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
}
