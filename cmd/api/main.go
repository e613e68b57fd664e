package main

import (
	"log"

	"github.com/maiscreditos/creditshub/internal/config"
	pkgconfig "github.com/maiscreditos/creditshub/pkg/config"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	// Load environment files explicitly
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	// Load configuration from YAML
	cfg, err := config.LoadFromFile("config.yaml")
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	app := pkgconfig.NewApp(cfg)

	log.Println("Starting CreditsHub server...")
	if err := app.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
