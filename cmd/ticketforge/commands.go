package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ticketforge/internal/runner"
)

func generateCmd(opts *rootOptions) *cobra.Command {
	var file, text, project, format string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tickets from a brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (text == "") {
				return errors.New("exactly one of --file or --text is required")
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			in := runner.Input{Text: text, ProjectID: project}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				in.File = data
				in.FileName = filepath.Base(file)
			}

			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Workflow.Run(ctx, in, a.Emitter(progressPrinter(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			return printProject(cmd.OutOrStdout(), p, format)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "brief file (.txt, .md or .pdf)")
	cmd.Flags().StringVar(&text, "text", "", "brief text")
	cmd.Flags().StringVar(&project, "project", "", "overwrite this project id")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format (table, json, yaml)")
	return cmd
}

func clarifyCmd(opts *rootOptions) *cobra.Command {
	var project, format string
	var pairs []string
	cmd := &cobra.Command{
		Use:   "clarify",
		Short: "Answer clarification questions and regenerate tickets",
		Example: `  ticketforge clarify --project 3f2a --answer 1='$2k/month' --answer 2='launch in 8 weeks'
  ticketforge clarify --project 3f2a --answer "What is the team composition and experience level?=2 developers"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errors.New("--project is required")
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			prev, err := a.Store.Get(ctx, project)
			if err != nil {
				return err
			}
			answers, err := parseAnswers(pairs, prev.Clarifications)
			if err != nil {
				return err
			}
			p, err := a.Workflow.Clarify(ctx, project, answers, a.Emitter(progressPrinter(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			return printProject(cmd.OutOrStdout(), p, format)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringArrayVar(&pairs, "answer", nil, "answer as question=value or index=value (1-based)")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format (table, json, yaml)")
	return cmd
}

// parseAnswers turns key=value pairs into answers keyed by question text. A
// numeric key selects the question at that 1-based position.
func parseAnswers(pairs, questions []string) (map[string]string, error) {
	answers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --answer %q: want key=value", pair)
		}
		if n, err := strconv.Atoi(key); err == nil {
			if n < 1 || n > len(questions) {
				return nil, fmt.Errorf("question %d does not exist (project has %d)", n, len(questions))
			}
			key = questions[n-1]
		}
		answers[key] = value
	}
	return answers, nil
}

func editCmd(opts *rootOptions) *cobra.Command {
	var project, instruction, format string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change tickets with a plain-language instruction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" || strings.TrimSpace(instruction) == "" {
				return errors.New("--project and --instruction are required")
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Workflow.Edit(ctx, project, instruction, a.Emitter(progressPrinter(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}
			return printEdit(cmd.OutOrStdout(), out, format)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&instruction, "instruction", "", "what to change, e.g. \"split TICKET-0103 into backend and frontend\"")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format (table, json, yaml)")
	return cmd
}

func showCmd(opts *rootOptions) *cobra.Command {
	var project, format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errors.New("--project is required")
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Store.Get(ctx, project)
			if err != nil {
				return err
			}
			return printProject(cmd.OutOrStdout(), p, format)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format (table, json, yaml)")
	return cmd
}

func costCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show the accumulated model cost of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return errors.New("--project is required")
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Store.Get(ctx, project)
			if err != nil {
				return err
			}
			printCost(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	return cmd
}
