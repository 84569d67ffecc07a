// Command qoredbd is the thin operator-facing binary wrapping core.Core:
// serve runs the stdio transport a UI shell launches as a child process,
// policy show and vault status are read-only diagnostics an operator runs
// by hand, and vault backup-shares/restore-shares write or restore a
// Shamir backup of the vault encryption key.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/qoredb/core/core"
	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/engine/document"
	"github.com/qoredb/core/engine/relational"
	"github.com/qoredb/core/transport/stdio"
)

func buildRegistry() *engine.Registry {
	registry := engine.NewRegistry()
	registry.Register(relational.NewMySQLDriver())
	registry.Register(relational.NewPostgresDriver())
	registry.Register(document.New())
	return registry
}

func main() {
	app := &cli.Command{
		Name:    "qoredbd",
		Usage:   "qoredb-core companion process",
		Version: "0.1.0",

		Commands: []*cli.Command{
			serveCommand(),
			policyCommand(),
			vaultCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "qoredbd: %v\n", err)
		os.Exit(1)
	}
}

// serveCommand runs the stdio request/response loop until stdin closes.
// The auth token is printed to stderr once, before the first line of
// stdin is consumed, so the launching UI shell can read it without it
// ever touching the request/response stream itself.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the stdio transport against stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := core.Bootstrap(buildRegistry())
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}

			server, token, err := stdio.New(c, c.Log())
			if err != nil {
				return fmt.Errorf("failed to start transport: %w", err)
			}
			fmt.Fprintf(os.Stderr, "qoredbd: auth-token %s\n", token)

			return server.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}

// policyCommand exposes the safety policy store for operator diagnostics
// outside of the stdio transport — useful when debugging why a
// production mutation was blocked without needing a UI shell running.
func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "inspect the safety policy",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the current safety policy",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := core.Bootstrap(buildRegistry())
					if err != nil {
						return fmt.Errorf("bootstrap failed: %w", err)
					}
					p := c.Policy()
					fmt.Printf("prod_require_confirmation: %t\n", p.ProdRequireConfirmation)
					fmt.Printf("prod_block_dangerous_sql:  %t\n", p.ProdBlockDangerousSQL)
					return nil
				},
			},
		},
	}
}

// vaultCommand exposes vault lock state and key-backup operator
// diagnostics. backup-shares/restore-shares are the one reachable entry
// point into the optional Shamir recovery-codes backup of the vault's
// encryption key: an operator must run one of these by hand, it is
// never invoked implicitly.
func vaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "inspect vault lock state and manage encryption-key backups",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "print whether the vault is locked and has a master password",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := core.Bootstrap(buildRegistry())
					if err != nil {
						return fmt.Errorf("bootstrap failed: %w", err)
					}
					status, err := c.GetVaultStatus()
					if err != nil {
						return err
					}
					fmt.Printf("locked:             %t\n", status.IsLocked)
					fmt.Printf("has_master_password: %t\n", status.HasMasterPassword)
					return nil
				},
			},
			{
				Name:  "backup-shares",
				Usage: "split the vault encryption key into Shamir shares for offline custody",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "directory to write share files into", Required: true},
					&cli.IntFlag{Name: "threshold", Aliases: []string{"t"}, Usage: "shares required to reconstruct the key", Value: 3},
					&cli.IntFlag{Name: "shares", Aliases: []string{"n"}, Usage: "total shares to generate", Value: 5},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := core.Bootstrap(buildRegistry())
					if err != nil {
						return fmt.Errorf("bootstrap failed: %w", err)
					}
					dir := cmd.String("dir")
					threshold := int(cmd.Int("threshold"))
					shares := int(cmd.Int("shares"))
					if err := c.BackupVaultKeyShares(dir, threshold, shares); err != nil {
						return err
					}
					fmt.Printf("wrote %d shares (threshold %d) to %s\n", shares, threshold, dir)
					return nil
				},
			},
			{
				Name:  "restore-shares",
				Usage: "reconstruct the vault encryption key from a Shamir share backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "directory containing share files", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := core.Bootstrap(buildRegistry())
					if err != nil {
						return fmt.Errorf("bootstrap failed: %w", err)
					}
					dir := cmd.String("dir")
					if err := c.RestoreVaultKeyFromShares(dir); err != nil {
						return err
					}
					fmt.Println("vault encryption key restored from shares")
					return nil
				},
			},
		},
	}
}
