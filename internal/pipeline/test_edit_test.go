package pipeline

import (
	"context"
	"strings"
	"testing"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/tester"
	"ticketforge/internal/types"
)

func ids(ts []types.Ticket) []string {
	out := make([]string, 0, len(ts))
	for _, tk := range ts {
		out = append(out, tk.ID)
	}
	return out
}

func TestApplyPatch_RemoveThenUpsert(t *testing.T) {
	before := []types.Ticket{ticket("A"), ticket("B"), ticket("C")}
	b2 := ticket("B")
	b2.Priority = types.PriorityP1
	out := ApplyPatch(before, EditPatch{
		ToRemove:      []string{"A"},
		ToAddOrUpdate: []types.Ticket{ticket("D"), b2},
	})
	tester.Eq(t, ids(out), []string{"B", "C", "D"})
	tester.Eq(t, out[0].Priority, types.PriorityP1)
	tester.Eq(t, before[1].Priority, types.PriorityP2, "input must not change")
}

func TestApplyPatch_RemoveAndReAdd(t *testing.T) {
	out := ApplyPatch([]types.Ticket{ticket("A"), ticket("B")}, EditPatch{
		ToRemove:      []string{"A"},
		ToAddOrUpdate: []types.Ticket{ticket("A")},
	})
	tester.Eq(t, ids(out), []string{"B", "A"})
}

func TestEditor_PatchResponse(t *testing.T) {
	before := []types.Ticket{ticket("A"), ticket("B")}
	split1, split2 := ticket("A1"), ticket("A2", "A1")
	llm := llmclient.NewScriptedClient(fenced(mustJSON(EditPatch{
		ToRemove:      []string{"A"},
		ToAddOrUpdate: []types.Ticket{split1, split2},
	})))
	res, c, err := (&Editor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), before, "Split ticket A into A1 and A2")
	tester.NoErr(t, err)
	tester.Eq(t, ids(res.Tickets), []string{"B", "A1", "A2"})
	tester.Eq(t, res.Changes, []TicketChange{
		{ID: "A", Kind: ChangeRemoved},
		{ID: "A1", Kind: ChangeAdded},
		{ID: "A2", Kind: ChangeAdded},
	})
	tester.False(t, c.IsZero())

	user := llm.Calls()[0].User
	tester.True(t, strings.Contains(user, "- A [P2] Work A"))
	tester.True(t, strings.HasSuffix(user, "Instruction: Split ticket A into A1 and A2"))
}

func TestEditor_FullArrayResponse(t *testing.T) {
	before := []types.Ticket{ticket("A"), ticket("B")}
	b := ticket("B")
	b.AcceptanceCriteria = append(b.AcceptanceCriteria, "Logged in audit trail")
	llm := llmclient.NewScriptedClient(mustJSON([]types.Ticket{ticket("A"), b}))
	res, _, err := (&Editor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), before, "Add acceptance criteria to B")
	tester.NoErr(t, err)
	tester.Eq(t, len(res.Changes), 1)
	tester.Eq(t, res.Changes[0].Kind, ChangeUpdated)
	tester.True(t, strings.Contains(res.Changes[0].Diff, "audit trail"), res.Changes[0].Diff)
}

func TestEditor_TicketsWrapper(t *testing.T) {
	llm := llmclient.NewScriptedClient(mustJSON(map[string]any{"tickets": []types.Ticket{ticket("Z")}}))
	res, _, err := (&Editor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), []types.Ticket{ticket("A")}, "replace everything with Z")
	tester.NoErr(t, err)
	tester.Eq(t, ids(res.Tickets), []string{"Z"})
}

func TestEditor_MalformedIsParseError(t *testing.T) {
	for name, resp := range map[string]string{
		"prose":          "Sure, I split the ticket for you.",
		"wrong object":   `{"result": "ok"}`,
		"invalid ticket": `{"toRemove": [], "toAddOrUpdate": [{"id": "A", "title": "x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			llm := llmclient.NewScriptedClient(resp)
			_, _, err := (&Editor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), []types.Ticket{ticket("A")}, "split A")
			pe := tester.ErrAs[*types.ParseError](t, err)
			tester.Eq(t, pe.Step, "edit")
			tester.True(t, strings.Contains(pe.UserMessage(), "simpler instruction"))
		})
	}
}

func TestEditor_DuplicateIDsIsParseError(t *testing.T) {
	llm := llmclient.NewScriptedClient(mustJSON([]types.Ticket{ticket("T-1"), ticket("T-1"), ticket("T-2")}))
	res, _, err := (&Editor{LLM: llm, Pricing: cost.Default}).Run(context.Background(), []types.Ticket{ticket("T-1")}, "add a ticket")
	pe := tester.ErrAs[*types.ParseError](t, err)
	tester.Eq(t, pe.Step, "edit")
	tester.True(t, strings.Contains(pe.Error(), "T-1"), pe.Error())
	tester.Eq(t, len(res.Tickets), 0)
}

func TestEditor_EmptyInstruction(t *testing.T) {
	llm := llmclient.NewScriptedClient()
	_, _, err := (&Editor{LLM: llm}).Run(context.Background(), nil, "  ")
	tester.ErrAs[*types.InputError](t, err)
	tester.Eq(t, len(llm.Calls()), 0)
}
