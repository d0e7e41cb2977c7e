// Command auth manages the API keys that guard the search service's write
// endpoints.
//
// Usage:
//
//	auth create -name "ops" [-rate-limit 100] [-expires-in 720h]
//	auth revoke -key <raw-key>
//	auth list
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	v := apikey.NewValidator(db)
	if err := v.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		err = cmdCreate(ctx, v, args[1:])
	case "revoke":
		err = cmdRevoke(ctx, v, args[1:])
	case "list":
		err = cmdList(ctx, v)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "name for the api key")
	rateLimit := fs.Int("rate-limit", 100, "requests per rate window")
	expiresIn := fs.Duration("expires-in", 0, "lifetime, e.g. 720h (0 = never expires)")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	key, info, err := v.CreateKey(ctx, *name, *rateLimit, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	fmt.Println("API key created. Store it now; it cannot be shown again.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", key)
	fmt.Printf("  ID:         %d\n", info.ID)
	fmt.Printf("  Name:       %s\n", info.Name)
	fmt.Printf("  Rate Limit: %d\n", info.RateLimit)
	fmt.Printf("  Expires:    %s\n", expiry(info))
	return nil
}

func cmdRevoke(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	key := fs.String("key", "", "raw api key to revoke")
	fs.Parse(args)

	if *key == "" {
		return fmt.Errorf("-key is required")
	}
	if err := v.RevokeKey(ctx, *key); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	fmt.Println("API key revoked.")
	return nil
}

func cmdList(ctx context.Context, v *apikey.Validator) error {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATE LIMIT\tCREATED\tEXPIRES")
	for _, k := range keys {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", k.ID, k.Name, k.RateLimit, k.CreatedAt.Format(time.RFC3339), expiry(k))
	}
	tw.Flush()
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func expiry(k apikey.KeyInfo) string {
	if k.ExpiresAt == nil {
		return "never"
	}
	return k.ExpiresAt.Format(time.RFC3339)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: auth [-config file] <command> [flags]

Commands:
  create   Create a new API key
  revoke   Revoke an existing API key
  list     List active API keys

Examples:
  auth create -name "ops" -rate-limit 100 -expires-in 720h
  auth revoke -key "abc123..."
  auth list`)
}
