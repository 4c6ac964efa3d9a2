package main

import (
	"github.com/joho/godotenv"

	"github.com/keyshelf/keyshelf/config"
	"github.com/keyshelf/keyshelf/models"
	"github.com/keyshelf/keyshelf/routes"
	"github.com/keyshelf/keyshelf/utils"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.Visitor{}, &models.Category{}, &models.Link{}, &models.AdminDeviceLog{})

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
