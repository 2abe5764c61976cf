// Configuration loading
//
// Config is read straight from the environment throughout this codebase,
// the same way the teacher does it; the only addition here is loading a
// local .env file first so `defaults (hard-coded) < .env file < process
// environment` holds without every deployment needing real env vars set.

package main

import (
	"os"

	"github.com/joho/godotenv"
)

func loadDotEnv() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	if _, err := os.Stat(envFile); err != nil {
		return // No .env file, not an error
	}

	if err := godotenv.Load(envFile); err != nil {
		LogWarning("Could not load " + envFile + ": " + err.Error())
	}
}
