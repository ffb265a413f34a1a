// Package main provides a CLI tool for generating test tokens for the lockgate API.
// These tokens use the dev signing key unless -key is given and will NOT work
// in production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"lockgate/internal/auth/models"
	"lockgate/internal/token"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultBaseURL = "http://localhost:8080"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Subject   string            `json:"subject"`
	ExpiresAt time.Time         `json:"expires_at"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return fmt.Errorf("missing subcommand")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	email := fs.String("email", "alice@example.com", "Account email (token subject)")
	role := fs.String("role", models.RoleUser, "Role claim for access tokens")
	ttl := fs.Duration("ttl", 15*time.Minute, "Token time-to-live")
	key := fs.String("key", envOr("JWT_SIGNING_KEY", devSigningKey), "HMAC signing key")
	asJSON := fs.Bool("json", false, "Output as JSON")

	switch args[0] {
	case "access", "refresh":
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	issuer, err := token.New([]byte(*key), token.WithAccessTTL(*ttl), token.WithRefreshTTL(*ttl))
	if err != nil {
		return err
	}

	ctx := context.Background()
	var issued *token.Issued
	if args[0] == "access" {
		issued, err = issuer.IssueAccessToken(ctx, *email, *role)
	} else {
		issued, err = issuer.IssueRefreshToken(ctx, *email)
	}
	if err != nil {
		return err
	}

	return write(out, tokenOutput{
		Token:     issued.Token,
		Type:      string(issued.Class),
		Subject:   *email,
		ExpiresAt: issued.ExpiresAt,
		Usage:     usage(args[0], issued.Token),
	}, *asJSON)
}

func usage(kind, raw string) map[string]string {
	if kind == "refresh" {
		return map[string]string{
			"curl": fmt.Sprintf(`curl -X POST %s/auth/refresh -H 'Content-Type: application/json' -d '{"refresh_token":"%s"}'`, defaultBaseURL, raw),
		}
	}
	return map[string]string{
		"header": "Authorization: Bearer " + raw,
		"curl":   fmt.Sprintf(`curl -X POST %s/auth/password/change -H 'Authorization: Bearer %s' -H 'Content-Type: application/json' -d '{"current_password":"...","new_password":"..."}'`, defaultBaseURL, raw),
	}
}

func write(out io.Writer, o tokenOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	}
	fmt.Fprintf(out, "%s token for %s (expires %s)\n\n%s\n\n", o.Type, o.Subject, o.ExpiresAt.Format(time.RFC3339), o.Token)
	for name, example := range o.Usage {
		fmt.Fprintf(out, "%s:\n  %s\n", name, example)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `tokengen - generate test tokens for lockgate

Usage:
  tokengen access  [-email E] [-role user|admin] [-ttl 15m] [-key K] [-json]
  tokengen refresh [-email E] [-ttl 15m] [-key K] [-json]
`)
}
