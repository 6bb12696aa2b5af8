// Package config parses environment variables into typed structs using
// github.com/caarlos0/env/v11, after optionally loading .env files with
// github.com/joho/godotenv.
//
// Every package of the engine owns a Config struct with env/envDefault tags;
// cmd/billingd composes them and calls Load once at startup:
//
//	var cfg webhook.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Variables already present in the process environment take precedence over
// values from .env files.
package config
