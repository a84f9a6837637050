package config_test

import (
	"fmt"

	"github.com/wonny/factorlab/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Minimum gain: %.1f%%\n", cfg.Engine.MinGainPct)
	fmt.Printf("Worker schedule: %s\n", cfg.Worker.Schedule)
}
