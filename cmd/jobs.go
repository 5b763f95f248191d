package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-bookings/app/service"
	"github.com/vibast-solutions/ms-go-bookings/config"
)

var (
	workerMode bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run reconciliation sweep commands",
}

var sweepPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Re-derive state for bookings stuck pending by querying the gateway",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"sweep_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SweepInterval },
			func(s *service.BookingService, ctx context.Context) error {
				return s.RunSweepPendingBatch(ctx)
			},
		)
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Run booking notification commands",
}

var notificationsDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch pending booking notifications to the configured endpoint",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"notifications_dispatch",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.NotifyDispatchInterval },
			func(s *service.BookingService, ctx context.Context) error {
				return s.RunDispatchNotificationsBatch(ctx)
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expirePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Cancel bookings that stayed pending past the timeout",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirePendingInterval },
			func(s *service.BookingService, ctx context.Context) error {
				return s.RunExpirePendingBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(expireCmd)
	sweepCmd.AddCommand(sweepPendingCmd)
	notificationsCmd.AddCommand(notificationsDispatchCmd)
	expireCmd.AddCommand(expirePendingCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.BookingService, ctx context.Context) error,
) {
	cfg, bookingService, cleanup := mustCreateBookingService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), bookingService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(bookingService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	bookingService *service.BookingService,
	fn func(s *service.BookingService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(bookingService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(bookingService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
