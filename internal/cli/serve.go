package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkvsx/boostd/internal/api"
	"github.com/darkvsx/boostd/internal/app/discount"
	"github.com/darkvsx/boostd/internal/app/orders"
	"github.com/darkvsx/boostd/internal/app/payment"
	"github.com/darkvsx/boostd/internal/app/pricing"
	"github.com/darkvsx/boostd/internal/app/reconcile"
	"github.com/darkvsx/boostd/internal/daemon"
	"github.com/darkvsx/boostd/internal/infra/notify"
	"github.com/darkvsx/boostd/internal/infra/sqlite"
	"github.com/darkvsx/boostd/internal/infra/stripepay"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the order pipeline HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Stripe.SecretKey == "" {
		return errors.New("no Stripe secret key: set [stripe].secret_key or STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return errors.New("no webhook signing secret: set [stripe].webhook_secret or STRIPE_WEBHOOK_SECRET")
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	stripe := stripepay.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	writer, err := orders.New(db, db, cfg.Limits.NodeID)
	if err != nil {
		return err
	}

	srv := api.NewServer(
		pricing.New(db),
		discount.New(db, db, discount.Config{
			TaxRate:         cfg.Pricing.TaxRate,
			ReferralPercent: cfg.Pricing.ReferralPercent,
			MinChargeCents:  cfg.Pricing.MinChargeCents,
		}),
		payment.New(stripe, time.Duration(cfg.Stripe.TimeoutSeconds)*time.Second),
		writer,
		reconcile.New(db),
		db, db, stripe,
	)
	if cfg.API.MetricsEnabled {
		srv.EnableMetrics()
	}
	if cfg.Notify.Endpoint != "" {
		srv.SetNotifier(notify.New(cfg.Notify.Endpoint, time.Duration(cfg.Notify.TimeoutSeconds)*time.Second))
	}
	if cfg.Limits.MaxRequests > 0 {
		srv.SetRateLimiter(db, api.LimitPolicy{
			Window:      time.Duration(cfg.Limits.WindowSeconds) * time.Second,
			MaxRequests: cfg.Limits.MaxRequests,
		})
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("[serve] %s received, draining", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.Load(configPath)
		if err != nil {
			return err
		}
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}
		fmt.Printf("store %s migrated\n", cfg.Store.Path)
		return nil
	},
}
