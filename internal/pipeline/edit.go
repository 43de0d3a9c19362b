package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"ticketforge/internal/cost"
	llmclient "ticketforge/internal/llm/client"
	"ticketforge/internal/llmtool"
	t "ticketforge/internal/types"
	"ticketforge/internal/util/jsonutil"
)

const editSystemPrompt = `You are a ticket editor. Given a list of tickets and a user instruction, apply the requested changes.

Possible instructions include:
- "Split ticket X into Y and Z"
- "Merge tickets X and Y"
- "Add acceptance criteria to ticket X"
- "Increase detail on ticket X"
- "Change priority of ticket X to P1"
- "Add dependency from X to Y"

Return JSON only, in one of two forms:
1. A patch: {"toRemove": ["<id>", ...], "toAddOrUpdate": [<full ticket>, ...]}
2. The complete updated tickets array.
Prefer the patch form. Tickets in toAddOrUpdate must carry every field: id, title, description, acceptanceCriteria, effortPoints (1,2,3,5,8,13), useCase, priority (P1,P2,P3), labels, dependencies.`

// EditPatch is the incremental form of an edit.
type EditPatch struct {
	ToRemove      []string   `json:"toRemove"`
	ToAddOrUpdate []t.Ticket `json:"toAddOrUpdate"`
}

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeUpdated ChangeKind = "updated"
)

// TicketChange describes what an edit did to one ticket. Diff is a unified
// style text patch of the ticket JSON and is set for updates only.
type TicketChange struct {
	ID   string     `json:"id"`
	Kind ChangeKind `json:"kind"`
	Diff string     `json:"diff,omitempty"`
}

// EditResult is the ticket list after an edit plus what changed.
type EditResult struct {
	Tickets []t.Ticket
	Changes []TicketChange
}

// Editor applies a natural-language instruction to a ticket list.
type Editor struct {
	LLM     llmclient.LLMClient
	Pricing cost.Pricing
}

// Run makes one model call. Output that is neither a ticket array nor a
// patch, or that produces an invalid ticket, yields *types.ParseError and
// the input tickets are left untouched.
func (e *Editor) Run(ctx context.Context, tickets []t.Ticket, instruction string) (EditResult, t.Cost, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return EditResult{}, t.Cost{}, &t.InputError{Reason: "edit instruction is empty"}
	}
	current, err := jsonutil.MarshalIndentNoEscape(tickets)
	if err != nil {
		return EditResult{}, t.Cost{}, err
	}
	var user strings.Builder
	user.WriteString("Ticket summary:\n")
	for _, tk := range tickets {
		fmt.Fprintf(&user, "- %s [%s] %s\n", tk.ID, tk.Priority, tk.Title)
	}
	user.WriteString("\nCurrent tickets:\n")
	user.Write(current)
	fmt.Fprintf(&user, "\n\nInstruction: %s", instruction)

	resp, c, err := complete(ctx, e.LLM, e.Pricing, "edit", llmclient.Request{
		System:      editSystemPrompt,
		User:        user.String(),
		Temperature: 0.2,
		MaxTokens:   4096,
		JSON:        true,
	})
	if err != nil {
		return EditResult{}, t.Cost{}, err
	}
	next, err := decodeEdit(resp.Text, tickets)
	if err != nil {
		return EditResult{}, c, &t.ParseError{Step: "edit", Err: err}
	}
	if err := t.ValidateTickets(next); err != nil {
		return EditResult{}, c, &t.ParseError{Step: "edit", Err: err}
	}
	seen := make(map[string]bool, len(next))
	for _, tk := range next {
		if seen[tk.ID] {
			return EditResult{}, c, &t.ParseError{Step: "edit", Err: fmt.Errorf("duplicate ticket id %q", tk.ID)}
		}
		seen[tk.ID] = true
	}
	return EditResult{Tickets: next, Changes: DiffTickets(tickets, next)}, c, nil
}

func decodeEdit(text string, tickets []t.Ticket) ([]t.Ticket, error) {
	payload := llmtool.ExtractJSON(text)
	if payload == "" {
		return nil, llmtool.ErrEmptyResponse
	}
	if llmtool.IsArray(payload) {
		var out []t.Ticket
		if err := jsonutil.UnmarshalFlex([]byte(payload), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	keys, err := jsonutil.Keys([]byte(payload))
	if err != nil {
		return nil, err
	}
	if raw, ok := keys["tickets"]; ok {
		var out []t.Ticket
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("tickets: %w", err)
		}
		return out, nil
	}
	_, hasRemove := keys["toRemove"]
	_, hasUpsert := keys["toAddOrUpdate"]
	if !hasRemove && !hasUpsert {
		return nil, fmt.Errorf("expected a ticket array or a toRemove/toAddOrUpdate patch")
	}
	var p EditPatch
	if err := jsonutil.UnmarshalFlex([]byte(payload), &p); err != nil {
		return nil, err
	}
	return ApplyPatch(tickets, p), nil
}

// ApplyPatch drops the removed ids, then replaces tickets whose id matches
// an upsert in place and appends the rest. The input slice is not modified.
func ApplyPatch(tickets []t.Ticket, p EditPatch) []t.Ticket {
	remove := make(map[string]bool, len(p.ToRemove))
	for _, id := range p.ToRemove {
		remove[id] = true
	}
	out := make([]t.Ticket, 0, len(tickets)+len(p.ToAddOrUpdate))
	pos := map[string]int{}
	for _, tk := range tickets {
		if remove[tk.ID] {
			continue
		}
		pos[tk.ID] = len(out)
		out = append(out, tk)
	}
	for _, tk := range p.ToAddOrUpdate {
		if i, ok := pos[tk.ID]; ok {
			out[i] = tk
			continue
		}
		pos[tk.ID] = len(out)
		out = append(out, tk)
	}
	return out
}

// DiffTickets lists removals first, then additions and updates in the order
// they appear in after.
func DiffTickets(before, after []t.Ticket) []TicketChange {
	changes := []TicketChange{}
	old := make(map[string]t.Ticket, len(before))
	for _, tk := range before {
		old[tk.ID] = tk
	}
	seen := make(map[string]bool, len(after))
	for _, tk := range after {
		seen[tk.ID] = true
	}
	for _, tk := range before {
		if !seen[tk.ID] {
			changes = append(changes, TicketChange{ID: tk.ID, Kind: ChangeRemoved})
		}
	}
	for _, tk := range after {
		prev, ok := old[tk.ID]
		switch {
		case !ok:
			changes = append(changes, TicketChange{ID: tk.ID, Kind: ChangeAdded})
		case !reflect.DeepEqual(prev, tk):
			changes = append(changes, TicketChange{ID: tk.ID, Kind: ChangeUpdated, Diff: ticketPatch(prev, tk)})
		}
	}
	return changes
}

func ticketPatch(a, b t.Ticket) string {
	aj, err := jsonutil.MarshalIndentNoEscape(a)
	if err != nil {
		return ""
	}
	bj, err := jsonutil.MarshalIndentNoEscape(b)
	if err != nil {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(aj), string(bj), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(string(aj), diffs))
}
