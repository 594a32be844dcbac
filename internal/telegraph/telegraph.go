package telegraph

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/brief"
	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/events"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/models"
	"github.com/zulandar/flowguard/internal/reflection"
)

// Source loads the current commitment collection.
type Source interface {
	Load(ctx context.Context) ([]models.Commitment, error)
}

// Daemon is the main telegraph process. It connects to a platform via an
// Adapter and posts the weekly brief and the reflection feed on their cron
// schedules.
type Daemon struct {
	source   Source
	surfacer *reflection.Surfacer
	adapter  Adapter
	cfg      config.TelegraphConfig
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	env      string
	now      func() time.Time
	out      io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Source      Source
	Surfacer    *reflection.Surfacer // optional; disables the feed schedule when nil
	Adapter     Adapter
	Config      config.TelegraphConfig
	Events      events.Publisher
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Environment string
	Now         func() time.Time // defaults to time.Now
	Out         io.Writer        // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("telegraph: source is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	d := &Daemon{
		source:   opts.Source,
		surfacer: opts.Surfacer,
		adapter:  opts.Adapter,
		cfg:      opts.Config,
		events:   opts.Events,
		metrics:  opts.Metrics,
		log:      opts.Log,
		env:      opts.Environment,
		now:      opts.Now,
		out:      opts.Out,
	}
	if d.events == nil {
		d.events = &events.NoopPublisher{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.out == nil {
		d.out = os.Stdout
	}
	return d, nil
}

// Run connects the adapter and fires the brief and feed schedules until
// ctx is cancelled. On shutdown it closes the adapter.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Telegraph connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}
	defer func() {
		if err := d.adapter.Close(); err != nil {
			d.log.Warn("telegraph: close adapter", zap.Error(err))
		}
		fmt.Fprintf(d.out, "Telegraph stopped\n")
	}()

	briefTimer := d.newTimer(d.cfg.WeeklyBriefCron)
	var feedTimer *time.Timer
	if d.surfacer != nil {
		feedTimer = d.newTimer(d.cfg.FeedCron)
	}
	defer func() {
		if briefTimer != nil {
			briefTimer.Stop()
		}
		if feedTimer != nil {
			feedTimer.Stop()
		}
	}()

	fmt.Fprintf(d.out, "Telegraph online (%s)\n", adapterName(d.adapter))
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Telegraph shutting down...\n")
			return nil
		case <-timerChan(briefTimer):
			if err := d.SendBrief(ctx); err != nil {
				d.log.Error("telegraph: weekly brief", zap.Error(err))
			}
			d.reset(briefTimer, d.cfg.WeeklyBriefCron)
		case <-timerChan(feedTimer):
			if _, err := d.SendFeed(ctx); err != nil {
				d.log.Error("telegraph: reflection feed", zap.Error(err))
			}
			d.reset(feedTimer, d.cfg.FeedCron)
		}
	}
}

func (d *Daemon) newTimer(expr string) *time.Timer {
	if expr == "" {
		return nil
	}
	if dur := nextCronDuration(expr, d.now()); dur > 0 {
		return time.NewTimer(dur)
	}
	d.log.Warn("telegraph: schedule disabled", zap.String("cron", expr))
	return nil
}

func (d *Daemon) reset(t *time.Timer, expr string) {
	if dur := nextCronDuration(expr, d.now()); dur > 0 {
		t.Reset(dur)
	}
}

// SendBrief compiles the weekly brief from the current collection and
// delivers it.
func (d *Daemon) SendBrief(ctx context.Context) error {
	collection, err := d.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("telegraph: load: %w", err)
	}
	summary := brief.Compile(collection, d.now())
	err = d.adapter.Send(ctx, FormatBrief(summary, collection))
	d.metrics.ObserveBrief(adapterName(d.adapter), err)
	if err != nil {
		return fmt.Errorf("telegraph: send brief: %w", err)
	}

	msg := events.BriefCompiled{Environment: d.env, Totals: summary.Totals()}
	if err := d.events.Publish(ctx, events.TopicBriefCompiled, msg); err != nil {
		d.log.Warn("telegraph: publish brief event failed", zap.Error(err))
	}
	d.log.Info("telegraph: brief sent", zap.Any("totals", msg.Totals))
	return nil
}

// SendFeed surfaces the reflection feed and delivers it when it has items.
// It returns the number of items sent.
func (d *Daemon) SendFeed(ctx context.Context) (int, error) {
	if d.surfacer == nil {
		return 0, nil
	}
	collection, err := d.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("telegraph: load: %w", err)
	}
	now := d.now()
	feed, err := d.surfacer.Build(ctx, collection, now)
	if err != nil {
		return 0, fmt.Errorf("telegraph: %w", err)
	}
	if len(feed.Items) == 0 {
		return 0, nil
	}
	if err := d.adapter.Send(ctx, FormatFeed(feed)); err != nil {
		return 0, fmt.Errorf("telegraph: send feed: %w", err)
	}
	// Items go on cooldown only once delivered.
	if err := d.surfacer.Mark(ctx, feed, now); err != nil {
		return len(feed.Items), fmt.Errorf("telegraph: %w", err)
	}
	d.log.Info("telegraph: feed sent", zap.Int("items", len(feed.Items)))
	return len(feed.Items), nil
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
