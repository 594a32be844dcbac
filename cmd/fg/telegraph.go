package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/telegraph"
	discordadapter "github.com/zulandar/flowguard/internal/telegraph/discord"
	githubadapter "github.com/zulandar/flowguard/internal/telegraph/github"
	slackadapter "github.com/zulandar/flowguard/internal/telegraph/slack"
)

func newTelegraphCmd() *cobra.Command {
	var (
		configPath string
		once       string
	)
	cmd := &cobra.Command{
		Use:     "telegraph",
		Aliases: []string{"tg"},
		Short:   "Deliver the weekly brief and reflection feed on schedule",
		Long:    "Connects to the configured platform (slack, discord or github) and posts the weekly brief and reflection feed on their cron schedules. --once sends immediately and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Telegraph.Platform == "" {
				return fmt.Errorf("telegraph: no platform configured in %s (add telegraph.platform)", configPath)
			}
			adapter, err := createAdapter(a.cfg.Telegraph)
			if err != nil {
				return err
			}
			daemon, err := telegraph.NewDaemon(telegraph.DaemonOpts{
				Source:      a.store,
				Surfacer:    a.feed,
				Adapter:     adapter,
				Config:      a.cfg.Telegraph,
				Events:      a.events,
				Metrics:     a.metrics,
				Log:         a.log,
				Environment: a.cfg.Environment,
				Now:         clock,
				Out:         cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			if once == "" {
				ctx, stop := signalContext()
				defer stop()
				return daemon.Run(ctx)
			}
			return sendOnce(cmd, daemon, adapter, once)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&once, "once", "", "send now and exit: brief or feed")
	return cmd
}

// sendOnce connects adapter, sends one brief or feed and closes it.
func sendOnce(cmd *cobra.Command, daemon *telegraph.Daemon, adapter telegraph.Adapter, what string) error {
	ctx := cmd.Context()
	if what != "brief" && what != "feed" {
		return fmt.Errorf("telegraph: --once must be brief or feed, got %q", what)
	}
	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}
	defer adapter.Close()

	out := cmd.OutOrStdout()
	if what == "brief" {
		if err := daemon.SendBrief(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Weekly brief sent.")
		return nil
	}
	n, err := daemon.SendFeed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d reflection item(s).\n", n)
	return nil
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg config.TelegraphConfig) (telegraph.Adapter, error) {
	var (
		adapter telegraph.Adapter
		err     error
	)
	switch cfg.Platform {
	case "slack":
		adapter, err = slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
	case "discord":
		adapter, err = discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
	case "github":
		adapter, err = githubadapter.New(githubadapter.AdapterOpts{
			Token:  cfg.GitHub.Token,
			Owner:  cfg.GitHub.Owner,
			Repo:   cfg.GitHub.Repo,
			Labels: cfg.GitHub.Labels,
		})
	default:
		return nil, fmt.Errorf("telegraph: unsupported platform %q", cfg.Platform)
	}
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
