package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"ticketforge/internal/runner"
	"ticketforge/internal/types"
	"ticketforge/internal/util/jsonutil"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// printStructured writes v as indented JSON or as block-style YAML with the
// same field names.
func printStructured(w io.Writer, v any, format string) error {
	b, err := jsonutil.MarshalIndentNoEscape(v)
	if err != nil {
		return err
	}
	if format == formatJSON {
		_, err = w.Write(b)
		return err
	}
	// JSON is YAML; re-encoding through a node keeps key order.
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func printProject(w io.Writer, p types.ProjectState, format string) error {
	if format != formatTable {
		return printStructured(w, p, format)
	}
	fmt.Fprintf(w, "Project %s: %s\n", p.ID, p.Requirements.ProjectName)
	if p.Requirements.Summary != "" {
		fmt.Fprintf(w, "%s\n", p.Requirements.Summary)
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Priority", "Points", "Title", "Depends on"})
	points := 0
	for _, t := range p.Tickets {
		tw.AppendRow(table.Row{t.ID, t.Priority, int(t.EffortPoints), t.Title, strings.Join(t.Dependencies, ", ")})
		points += int(t.EffortPoints)
	}
	tw.AppendFooter(table.Row{"", "", points, fmt.Sprintf("%d tickets", len(p.Tickets)), ""})
	tw.Render()

	if len(p.Clarifications) > 0 {
		fmt.Fprintln(w, "\nOpen questions:")
		for i, q := range p.Clarifications {
			mark := " "
			if _, ok := p.Answers[q]; ok {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %d. %s\n", mark, i+1, q)
		}
	}
	if len(p.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSimilar projects:")
		for _, s := range p.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if !p.Validation.Valid {
		fmt.Fprintln(w, "\nValidation issues:")
		for _, is := range p.Validation.Issues {
			id := ""
			if is.TicketID != "" {
				id = is.TicketID + ": "
			}
			fmt.Fprintf(w, "  - [%s] %s%s\n", is.Type, id, is.Description)
		}
	}
	fmt.Fprintf(w, "\nCost: %s\n", formatCost(p.Cost))
	return nil
}

func printEdit(w io.Writer, out runner.EditOutcome, format string) error {
	if format != formatTable {
		return printStructured(w, out, format)
	}
	if len(out.Changes) == 0 {
		fmt.Fprintln(w, "No tickets changed.")
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Change"})
	for _, c := range out.Changes {
		tw.AppendRow(table.Row{c.ID, c.Kind})
	}
	tw.Render()
	for _, c := range out.Changes {
		if c.Diff != "" {
			fmt.Fprintf(w, "\n%s:\n%s", c.ID, c.Diff)
		}
	}
	fmt.Fprintf(w, "\nProject %s now has %d tickets.\n", out.Project.ID, len(out.Project.Tickets))
	return nil
}

func printCost(w io.Writer, p types.ProjectState) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Project", "Tokens in", "Tokens out", "USD"})
	tw.AppendRow(table.Row{p.ID, p.Cost.TokensIn, p.Cost.TokensOut, fmt.Sprintf("%.4f", p.Cost.USD)})
	tw.Render()
}

func formatCost(c types.Cost) string {
	return fmt.Sprintf("$%.4f (%d tokens in, %d out)", c.USD, c.TokensIn, c.TokensOut)
}

// progressPrinter reports run events as one line each.
func progressPrinter(w io.Writer) runner.Emitter {
	var mu sync.Mutex
	return runner.FuncEmitter(func(e runner.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Kind {
		case runner.EventStatus:
			fmt.Fprintf(w, "[%s] %s\n", e.Step, e.Message)
		case runner.EventProgress:
			if p, ok := e.Payload.(runner.Progress); ok {
				if p.Batches > 0 {
					fmt.Fprintf(w, "[%s] batch %d/%d, %d tickets (%d%%)\n", e.Step, p.Batch, p.Batches, p.Tickets, p.Percent)
				} else {
					fmt.Fprintf(w, "[%s] %d%%, %s\n", e.Step, p.Percent, formatCost(p.Cost))
				}
			}
		case runner.EventError:
			fmt.Fprintf(w, "failed: %s\n", e.Message)
		case runner.EventComplete:
			fmt.Fprintf(w, "%s\n", e.Message)
		}
	})
}
