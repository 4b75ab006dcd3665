package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	subscriptionmodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/subscription"
	usermodel "github.com/hoanglv/swapstation-management/internal/core/datamodel/user"
	"github.com/hoanglv/swapstation-management/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo drivers and subscriptions for local development",
	Run: func(cmd *cobra.Command, args []string) {
		runSeed()
	},
}

func runSeed() {
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

	users := []usermodel.User{
		{Email: "driver1@example.com", FullName: "Nguyen Van A", Role: usermodel.RoleDriver, Status: usermodel.StatusActive},
		{Email: "driver2@example.com", FullName: "Tran Thi B", Role: usermodel.RoleDriver, Status: usermodel.StatusActive},
		{Email: "staff@example.com", FullName: "Le Van C", Role: usermodel.RoleStaff, Status: usermodel.StatusActive},
	}

	for i := range users {
		if err := gormDB.Where("email = ?", users[i].Email).FirstOrCreate(&users[i]).Error; err != nil {
			log.Error("failed to seed user", "error", err, "email", users[i].Email)
			os.Exit(1)
		}
	}

	for _, u := range users[:2] {
		sub := subscriptionmodel.Subscription{UserID: u.ID}
		if err := gormDB.Where("user_id = ?", u.ID).FirstOrCreate(&sub).Error; err != nil {
			log.Error("failed to seed subscription", "error", err, "user_id", u.ID)
			os.Exit(1)
		}
	}

	log.Info("seed complete", "users", len(users))
}
