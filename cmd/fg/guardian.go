package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/advisor"
	"github.com/zulandar/flowguard/internal/premortem"
)

func newAdviseCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "advise <id>",
		Short: "Ask the AI advisor to review a commitment's wording and plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			target, err := a.ledger.Get(ctx, args[0])
			if err != nil {
				return err
			}
			all, err := a.ledger.List(ctx)
			if err != nil {
				return err
			}
			in, ok := advisor.FromCommitment(target, all).Normalize()
			if !ok {
				return writeJSON(cmd.OutOrStdout(), advisor.Result[advisor.Output]{
					Status: advisor.StatusInvalidInput,
					Reason: advisor.ReasonInvalidInput,
				})
			}
			adv, err := advisor.New(a.cfg.Guardian, advisor.Options{Log: a.log, Metrics: a.metrics})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), adv.Analyze(ctx, in))
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newPreMortemCmd() *cobra.Command {
	var (
		configPath string
		promptOnly bool
	)
	cmd := &cobra.Command{
		Use:   "premortem <id>",
		Short: "Run a pre-mortem on a commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			target, err := a.ledger.Get(ctx, args[0])
			if err != nil {
				return err
			}
			all, err := a.ledger.List(ctx)
			if err != nil {
				return err
			}
			pmContext := premortem.BuildContext(target, all, clock())
			prompt, err := premortem.BuildPrompt(pmContext)
			if err != nil {
				return err
			}
			if promptOnly {
				fmt.Fprintln(cmd.OutOrStdout(), prompt)
				return nil
			}

			adv, err := advisor.New(a.cfg.Guardian, advisor.Options{Log: a.log, Metrics: a.metrics})
			if err != nil {
				return err
			}
			res := adv.PreMortem(ctx, prompt)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"status":  res.Status,
				"reason":  res.Reason,
				"result":  res.Result,
				"context": pmContext,
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&promptOnly, "prompt", false, "print the prompt instead of calling the advisor")
	return cmd
}
