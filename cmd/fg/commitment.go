package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/ledger"
	"github.com/zulandar/flowguard/internal/models"
)

func newCommitmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commitment",
		Aliases: []string{"c"},
		Short:   "Manage commitments",
	}
	cmd.AddCommand(newCommitmentCreateCmd())
	cmd.AddCommand(newCommitmentListCmd())
	cmd.AddCommand(newCommitmentShowCmd())
	cmd.AddCommand(newCommitmentEditCmd())
	cmd.AddCommand(newCommitmentStatusCmd())
	cmd.AddCommand(newChecklistCmd())
	return cmd
}

// commitmentFields backs the create and edit flags.
type commitmentFields struct {
	title       string
	description string
	project     string
	area        string
	owner       string
	stakeholder string
	due         string
	kind        string
	impact      string
	depends     []string
	risks       []string
}

func (f *commitmentFields) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "commitment title")
	fl.StringVar(&f.description, "description", "", "free-text description")
	fl.StringVar(&f.project, "project", "", "project name")
	fl.StringVar(&f.area, "area", "", "area or team")
	fl.StringVar(&f.owner, "owner", "", "person accountable for delivery")
	fl.StringVar(&f.stakeholder, "stakeholder", "", "person the promise is made to")
	fl.StringVar(&f.due, "due", "", "expected date (yyyy-mm-dd)")
	fl.StringVar(&f.kind, "type", "", "DELIVERY, ALIGNMENT, DECISION or OP")
	fl.StringVar(&f.impact, "impact", "", "LOW, MEDIUM, HIGH or CRITICAL")
	fl.StringSliceVar(&f.depends, "depends", nil, "ids this commitment depends on")
	fl.StringSliceVar(&f.risks, "risk", nil, "risk description (repeatable)")
}

// apply overlays the flags that were set on cmd onto opts.
func (f *commitmentFields) apply(cmd *cobra.Command, opts *ledger.CreateOpts) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		opts.Titulo = f.title
	}
	if changed("description") {
		opts.Descricao = f.description
	}
	if changed("project") {
		opts.Projeto = f.project
	}
	if changed("area") {
		opts.Area = f.area
	}
	if changed("owner") {
		opts.Owner = f.owner
	}
	if changed("stakeholder") {
		opts.Stakeholder = f.stakeholder
	}
	if changed("due") {
		due, err := ledger.ParseDueDate(f.due, time.Local)
		if err != nil {
			return err
		}
		opts.DataEsperada = due
	}
	if changed("type") {
		opts.Tipo = models.Type(strings.ToUpper(f.kind))
	}
	if changed("impact") {
		opts.Impacto = models.Impact(strings.ToUpper(f.impact))
	}
	if changed("depends") {
		opts.Dependencias = f.depends
	}
	if changed("risk") {
		var risks []models.Risk
		for _, text := range f.risks {
			risks = append(risks, models.Risk{Descricao: text})
		}
		opts.Riscos = models.SanitizeRisks(risks, models.NewRiskID)
	}
	return nil
}

// optsFrom copies the editable fields of c.
func optsFrom(c models.Commitment) ledger.CreateOpts {
	return ledger.CreateOpts{
		Titulo:       c.Titulo,
		Descricao:    c.Descricao,
		Projeto:      c.Projeto,
		Area:         c.Area,
		Owner:        c.Owner,
		Stakeholder:  c.Stakeholder,
		Dependencias: c.Dependencias,
		DataEsperada: c.DataEsperada,
		Tipo:         c.Tipo,
		Impacto:      c.Impacto,
		Riscos:       c.Riscos,
	}
}

func newCommitmentCreateCmd() *cobra.Command {
	var (
		configPath string
		fields     commitmentFields
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a commitment in BACKLOG",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts ledger.CreateOpts
			if err := fields.apply(cmd, &opts); err != nil {
				return err
			}
			if err := ledger.RequireParties(opts); err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.ledger.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created commitment #%s: %s\n", c.ID, c.Titulo)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	fields.register(cmd)
	return cmd
}

func newCommitmentEditCmd() *cobra.Command {
	var (
		configPath string
		fields     commitmentFields
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a commitment; moving the date counts as a renegotiation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			current, err := a.ledger.Get(ctx, args[0])
			if err != nil {
				return err
			}
			opts := optsFrom(current)
			if err := fields.apply(cmd, &opts); err != nil {
				return err
			}
			if err := ledger.RequireParties(opts); err != nil {
				return err
			}
			c, err := a.ledger.Edit(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated commitment #%s (renegotiated %d time(s))\n", c.ID, c.RenegociadoCount)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	fields.register(cmd)
	return cmd
}

func newCommitmentStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status <id> <BACKLOG|ACTIVE|DONE|CANCELLED>",
		Short: "Change a commitment's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			status := models.Status(strings.ToUpper(args[1]))
			c, err := a.ledger.ChangeStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Commitment #%s is now %s\n", c.ID, c.Status)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newCommitmentListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		project    string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commitments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.ledger.List(cmd.Context())
			if err != nil {
				return err
			}
			var rows []models.Commitment
			for _, c := range all {
				if status != "" && !strings.EqualFold(string(c.Status), status) {
					continue
				}
				if project != "" && !strings.EqualFold(c.Projeto, project) {
					continue
				}
				rows = append(rows, c)
			}
			if asJSON {
				if rows == nil {
					rows = []models.Commitment{}
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			renderCommitments(cmd, rows)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&project, "project", "", "filter by project")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func renderCommitments(cmd *cobra.Command, rows []models.Commitment) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No commitments.")
		return
	}
	now := clock()
	tw := newTable(out)
	tw.AppendHeader(table.Row{"ID", "Title", "Project", "Owner", "Due", "Status", "Checklist", "Flags"})
	for _, c := range rows {
		tw.AppendRow(table.Row{
			c.ID, truncate(c.Titulo, 40), c.Projeto, c.Owner, formatDate(c.DataEsperada),
			c.Status, formatProgress(c.ChecklistProgress()), commitmentFlags(c, now),
		})
	}
	tw.Render()
}

func newCommitmentShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a commitment with its checklist, risks and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			renderCommitment(cmd, c)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func renderCommitment(cmd *cobra.Command, c models.Commitment) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "#%s %s\n", c.ID, c.Titulo)
	fmt.Fprintf(out, "  Status:       %s\n", c.Status)
	fmt.Fprintf(out, "  Project/Area: %s / %s\n", c.Projeto, c.Area)
	fmt.Fprintf(out, "  Owner:        %s -> %s\n", c.Owner, c.Stakeholder)
	fmt.Fprintf(out, "  Due:          %s\n", formatDate(c.DataEsperada))
	fmt.Fprintf(out, "  Type/Impact:  %s / %s\n", c.Tipo, c.Impacto)
	fmt.Fprintf(out, "  Renegotiated: %d\n", c.RenegociadoCount)
	if len(c.Dependencias) > 0 {
		fmt.Fprintf(out, "  Depends on:   #%s\n", strings.Join(c.Dependencias, ", #"))
	}
	if flags := commitmentFlags(c, clock()); flags != "" {
		fmt.Fprintf(out, "  Flags:        %s\n", flags)
	}
	if c.Descricao != "" {
		fmt.Fprintf(out, "\n%s\n", c.Descricao)
	}

	if len(c.Checklist) > 0 {
		fmt.Fprintf(out, "\nChecklist %s\n", formatProgress(c.ChecklistProgress()))
		for _, item := range c.Checklist {
			mark := " "
			if item.Completed {
				mark = "x"
			}
			fmt.Fprintf(out, "  [%s] %s  (%s)\n", mark, item.Text, item.ID)
		}
	}

	if len(c.Riscos) > 0 {
		fmt.Fprintln(out, "\nRisks")
		tw := newTable(out)
		tw.AppendHeader(table.Row{"Description", "Category", "Status", "P x I", "Score"})
		for _, r := range c.Riscos {
			tw.AppendRow(table.Row{truncate(r.Descricao, 50), r.Categoria, r.StatusMitigacao,
				fmt.Sprintf("%s x %s", r.Probabilidade, r.Impacto), r.MatrixScore()})
		}
		tw.Render()
	}

	if len(c.Historico) > 0 {
		fmt.Fprintln(out, "\nHistory")
		for _, ev := range c.Historico {
			fmt.Fprintf(out, "  %s  %-26s %s\n", ev.Timestamp.Format("02/01/2006 15:04"), ev.Tipo, ev.Descricao)
		}
	}
}

func newChecklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Manage a commitment's checklist",
	}
	cmd.AddCommand(newChecklistAddCmd())
	cmd.AddCommand(newChecklistItemCmd("toggle", "Toggle completion of a checklist item"))
	cmd.AddCommand(newChecklistItemCmd("remove", "Remove a checklist item"))
	return cmd
}

func newChecklistAddCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "add <id> <text>",
		Short: "Add a checklist item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.ledger.AddChecklistItem(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			item := c.Checklist[len(c.Checklist)-1]
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to #%s\n", item.ID, c.ID)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newChecklistItemCmd(action, short string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   action + " <id> <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			var c models.Commitment
			if action == "toggle" {
				c, err = a.ledger.ToggleChecklistItem(ctx, args[0], args[1])
			} else {
				c, err = a.ledger.RemoveChecklistItem(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checklist of #%s: %s\n", c.ID, formatProgress(c.ChecklistProgress()))
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
