// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/app"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/cartsync"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/domain/wishlist"
	"github.com/vaarahi/storefront/internal/interfaces/http"
	"github.com/vaarahi/storefront/internal/interfaces/http/routes"
	"github.com/vaarahi/storefront/internal/pkg/auth"
	"github.com/vaarahi/storefront/internal/pkg/email"
	"github.com/vaarahi/storefront/internal/pkg/logger"
	"github.com/vaarahi/storefront/internal/pkg/notify"
	"github.com/vaarahi/storefront/internal/pkg/pdf"
)

const (
	sweepInterval  = time.Minute
	cartIdleExpiry = 30 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.Logging)
	log.Printf("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect storage
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := app.OpenStorage(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer storage.Close()

	// Payment providers
	providers, phonePe, err := buildProviders(cfg, logg)
	if err != nil {
		log.Fatalf("Failed to configure payment providers: %v", err)
	}

	// Domain services
	feed := notify.NewFeed(logg)
	carts := cart.NewService(storage.KV, storage.Keys, logg)
	sync := cartsync.New(storage.KV, storage.Keys, logg)
	sync.Attach(carts)

	tokens := auth.NewJWTManager(cfg.JWT, cfg.App.Name)
	users := user.NewService(storage.KV, storage.Keys, auth.NewPasswordManager(cfg.Security.BcryptCost), tokens, logg)

	var mailer checkout.Mailer
	if cfg.Checkout.SendConfirmation {
		mailer = email.NewEmailService(cfg.Email, cfg.App, logg)
	}
	checkoutSvc := checkout.NewService(carts, providers, storage.KV, storage.Keys, feed, mailer, cfg, logg)

	if cfg.Checkout.BackfillOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		report, err := sync.Backfill(ctx)
		cancel()
		if err != nil {
			log.Printf("Warning: cart backfill failed: %v", err)
		} else {
			log.Printf("✅ Cart backfill scanned %d sessions, changed %d", report.Scanned, report.Changed)
		}
	}

	services := &routes.Services{
		Config:    cfg,
		Carts:     carts,
		Sync:      sync,
		Checkout:  checkoutSvc,
		Providers: providers,
		PhonePe:   phonePe,
		Users:     users,
		Wishlist:  wishlist.NewService(storage.KV, storage.Keys, carts, feed, logg),
		Feed:      feed,
		Receipts:  pdf.NewService(cfg.App),
		Tokens:    tokens,
		Log:       logg,
	}

	log.Println("✅ All systems operational!")

	// Background maintenance
	bgCtx, stopBackground := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runMaintenance(bgCtx, cfg, carts, checkoutSvc, phonePe, logg)
	}()

	// Create and start HTTP server
	server := http.NewServer(cfg, services, storage.RedisClient(), storage.Checks)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("👋 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	stopBackground()
	<-done
	checkoutSvc.Wait()

	log.Println("✅ Server shutdown completed")
}

// buildProviders wraps every gateway in a timeout and circuit breaker. The
// simulator is returned unwrapped as well so its pay page can settle orders.
func buildProviders(cfg *config.Config, log logrus.FieldLogger) (*payment.Registry, *payment.PhonePeSimulator, error) {
	guard := func(p payment.Provider) payment.Provider {
		return payment.NewGuarded(p, cfg.Payment.ProviderTimeout, cfg.Payment.BreakerFailures, cfg.Payment.BreakerOpenDelay, log)
	}

	phonePe := payment.NewPhonePeSimulator(cfg.Payment.PhonePe, log)
	registry, err := payment.NewRegistry(
		cfg.Payment.DefaultProvider,
		guard(payment.NewRazorpayService(cfg.Payment.Razorpay, log)),
		guard(phonePe),
	)
	if err != nil {
		return nil, nil, err
	}
	return registry, phonePe, nil
}

// runMaintenance evicts idle carts, abandons payment sessions that outlived
// the checkout timeout and forgets simulator orders nobody can still confirm.
func runMaintenance(ctx context.Context, cfg *config.Config, carts *cart.Service, checkoutSvc *checkout.Service, phonePe *payment.PhonePeSimulator, log logrus.FieldLogger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := checkoutSvc.ExpireAll(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to expire payment sessions")
			}
			evicted := carts.Sweep(cartIdleExpiry)
			pruned := phonePe.Prune(cfg.Checkout.SessionTimeout, 2*cfg.Checkout.SessionTimeout)
			if expired > 0 || evicted > 0 || pruned > 0 {
				log.WithFields(logrus.Fields{
					"expired_sessions": expired,
					"evicted_carts":    evicted,
					"live_carts":       carts.Live(),
					"pruned_phonepe":   pruned,
				}).Info("Maintenance sweep")
			}
		}
	}
}
