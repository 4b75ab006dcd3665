package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hoanglv/swapstation-management/internal/core/events"
	"github.com/hoanglv/swapstation-management/internal/payment"
	paymentstore "github.com/hoanglv/swapstation-management/internal/payment/postgres"
	"github.com/hoanglv/swapstation-management/internal/user"
	userstore "github.com/hoanglv/swapstation-management/internal/user/postgres"
	"github.com/hoanglv/swapstation-management/internal/vnpay"
	"github.com/hoanglv/swapstation-management/pkg/logger"
)

var sweepInterval time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the expired-payment sweep",
	Long:  `Periodically flips PENDING payments past their expiry to EXPIRED.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSweepWorker()
	},
}

func init() {
	workerCmd.Flags().DurationVar(&sweepInterval, "interval", time.Minute, "sweep interval")
}

func runSweepWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		log.Error("failed to initialize gorm", "error", err)
		os.Exit(1)
	}

	userService := user.NewService(userstore.NewUserRepository(gormDB), log)
	paymentService := payment.NewPaymentService(
		paymentstore.NewPaymentRepository(gormDB),
		userService,
		vnpay.NewSigner(config.VNPay.HashSecret),
		config.VNPay,
		events.NewEventBus(log),
		log,
	)

	log.Info("expired-payment sweep started", "interval", sweepInterval.String())

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if _, err := paymentService.ExpireStale(); err != nil {
				log.Error("sweep iteration failed", "error", err)
			}
		case sig := <-sigChan:
			log.Info("received signal, stopping sweep", "signal", sig.String())
			return
		}
	}
}
