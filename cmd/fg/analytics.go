package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/brief"
	"github.com/zulandar/flowguard/internal/graph"
	"github.com/zulandar/flowguard/internal/health"
	"github.com/zulandar/flowguard/internal/insights"
	"github.com/zulandar/flowguard/internal/models"
	"github.com/zulandar/flowguard/internal/reflection"
)

// analyticsCmd builds a read-only command over the whole collection.
func analyticsCmd(use, short string, run func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error) *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			collection, err := a.ledger.List(cmd.Context())
			if err != nil {
				return err
			}
			return run(cmd, a, collection, asJSON)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return analyticsCmd("health", "Show the flow health score", func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error {
		summary := health.Score(collection, clock())
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Flow health: %d (%s) over %d active commitment(s)\n", summary.Score, summary.Level, summary.TotalActive)
		b := summary.Breakdown
		tw := newTable(out)
		tw.AppendHeader(table.Row{"Signal", "Commitments"})
		tw.AppendRows([]table.Row{
			{"Overdue", b.Overdue},
			{"Blocked by dependency", b.BlockedByDependency},
			{"Open risk", b.OpenRisk},
			{"High risk", b.HighRisk},
			{"Recurrent", b.Recurrent},
		})
		tw.Render()
		return nil
	})
}

func newGraphCmd() *cobra.Command {
	return analyticsCmd("graph", "Show the correlation graph and cascade clusters", func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error {
		run := graph.Analyze(collection, clock())
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), run)
		}
		out := cmd.OutOrStdout()
		res := run.Result
		fmt.Fprintf(out, "%d node(s), %d edge(s), %d cluster(s)\n", len(res.Nodes), len(res.Edges), len(res.Clusters))
		if len(res.Edges) > 0 {
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Source", "Target", "Kind", "Confidence", "Reasons"})
			for _, e := range res.Edges {
				tw.AppendRow(table.Row{"#" + e.Source, "#" + e.Target, e.Kind, fmt.Sprintf("%.2f", e.Confidence), truncate(strings.Join(e.Reasons, "; "), 60)})
			}
			tw.Render()
		}
		if len(res.Clusters) > 0 {
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Project", "Commitments", "Signals", "Severity"})
			for _, c := range res.Clusters {
				tw.AppendRow(table.Row{c.Projeto, "#" + strings.Join(c.CommitmentIDs, ", #"), c.Signals, c.Severity})
			}
			tw.Render()
		}
		if res.Why != "" {
			fmt.Fprintln(out, res.Why)
		}
		return nil
	})
}

func newInsightsCmd() *cobra.Command {
	return analyticsCmd("insights", "Show integrity insights", func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error {
		opts := insights.Options{ExcludedOwners: a.cfg.Guardian.OwnerSaturationExclude}
		run := insights.Analyze(collection, clock(), opts)
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), run)
		}
		out := cmd.OutOrStdout()
		res := run.Result
		t := res.SystemSignals.Totals
		fmt.Fprintf(out, "Active %d | overdue %d | blocked %d | high risk %d | recurrent %d\n",
			t.Active, t.Overdue, t.Blocked, t.HighRiskOpen, t.Recurrent)
		if len(res.Insights) == 0 {
			fmt.Fprintln(out, "No insights.")
			return nil
		}
		tw := newTable(out)
		tw.AppendHeader(table.Row{"Severity", "Headline", "Evidence", "Action"})
		for _, in := range res.Insights {
			tw.AppendRow(table.Row{in.Severity, truncate(in.Headline, 50), truncate(in.Evidence, 50), truncate(in.RecommendedAction, 50)})
		}
		tw.Render()
		return nil
	})
}

func newBriefCmd() *cobra.Command {
	return analyticsCmd("brief", "Compile the weekly brief", func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error {
		summary := brief.Compile(collection, clock())
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		titles := make(map[string]string, len(collection))
		for _, c := range collection {
			titles[c.ID] = c.Titulo
		}
		tw := newTable(cmd.OutOrStdout())
		tw.AppendHeader(table.Row{"Block", "Total", "Commitments"})
		for _, b := range summary.Blocks {
			var names []string
			for _, id := range b.IDs {
				names = append(names, fmt.Sprintf("#%s %s", id, truncate(titles[id], 30)))
			}
			tw.AppendRow(table.Row{b.Label, b.Total, strings.Join(names, "\n")})
		}
		tw.Render()
		return nil
	})
}

func newFeedCmd() *cobra.Command {
	var peek bool
	cmd := analyticsCmd("feed", "Surface the reflection feed and mark items shown", func(cmd *cobra.Command, a *app, collection []models.Commitment, asJSON bool) error {
		var (
			feed reflection.Feed
			err  error
		)
		if peek {
			cooldown, cerr := a.store.Cooldowns(cmd.Context())
			if cerr != nil {
				return cerr
			}
			feed = reflection.BuildFeed(collection, clock(), reflection.Options{Cooldown: cooldown, Thresholds: a.feed.Thresholds})
		} else {
			feed, err = a.feed.Surface(cmd.Context(), collection, clock())
			if err != nil {
				return err
			}
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), feed)
		}
		out := cmd.OutOrStdout()
		if len(feed.Items) == 0 {
			fmt.Fprintln(out, "Nothing to reflect on right now.")
			return nil
		}
		tw := newTable(out)
		tw.AppendHeader(table.Row{"Severity", "Score", "Message", "Why"})
		for _, it := range feed.Items {
			tw.AppendRow(table.Row{it.Severity, it.Score, truncate(it.Message, 60), truncate(it.Why, 60)})
		}
		tw.Render()
		if feed.Suppressed > 0 {
			fmt.Fprintf(out, "%d item(s) in cooldown\n", feed.Suppressed)
		}
		return nil
	})
	cmd.Flags().BoolVar(&peek, "peek", false, "show the feed without marking items shown")
	return cmd
}
