// Package main mints operator bearer tokens for the registry's mutating routes.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sebasr/wifi-registry/internal/auth"
	"github.com/sebasr/wifi-registry/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(os.Args[1:], cfg.Auth, os.Stdout); err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
}

func run(args []string, cfg config.AuthConfig, stdout io.Writer) error {
	fs := flag.NewFlagSet("operator-token", flag.ContinueOnError)
	operator := fs.String("operator", "", "operator name recorded in the token (required)")
	ttl := fs.Duration("ttl", cfg.JWTAccessTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWTSecret, *ttl).GenerateOperatorToken(*operator)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}
