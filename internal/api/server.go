// Package api serves the commitment ledger and its analytics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/advisor"
	"github.com/zulandar/flowguard/internal/ledger"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/reflection"
)

// Options holds the collaborators behind the routes.
type Options struct {
	Ledger         *ledger.Service
	Feed           *reflection.Surfacer
	Advisor        *advisor.Advisor
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	JWTSecret      string
	ExcludedOwners []string
	Location       *time.Location
	Now            func() time.Time

	// StreamPoll and StreamHeartbeat pace GET /api/stream.
	StreamPoll      time.Duration
	StreamHeartbeat time.Duration
}

func (o *Options) withDefaults() {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.StreamPoll <= 0 {
		o.StreamPoll = defaultStreamPoll
	}
	if o.StreamHeartbeat <= 0 {
		o.StreamHeartbeat = defaultStreamHeartbeat
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Ledger == nil {
		return nil, errors.New("api: ledger service is required")
	}
	opts.withDefaults()

	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &opts)
	return router, nil
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, opts Options) error {
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Log != nil {
		opts.Log.Info("api: listening", zap.String("addr", addr))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
