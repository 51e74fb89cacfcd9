package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sportscouncil/backoffice/internal/secrets"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		store, err := initStore(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied", slog.String("driver", store.Driver()))
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored settings and credentials",
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Store a setting (secret keys are encrypted). Reads VALUE from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readStdin(cmd.InOrStdin())
			if err != nil {
				return err
			}
			value = v
		}
		return withShared(cmd.Context(), func(ctx context.Context, sc *SharedComponents) error {
			if err := sc.Settings.Set(ctx, args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (secret: %t)\n", args[0], sc.Registry.IsSecret(args[0]))
			return nil
		})
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored settings with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withShared(cmd.Context(), func(ctx context.Context, sc *SharedComponents) error {
			list, err := sc.Settings.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tENCRYPTED\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", s.Key, s.Value, s.Encrypted, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShared(cmd.Context(), func(ctx context.Context, sc *SharedComponents) error {
			if err := sc.Settings.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a value read from stdin with the master key",
	Long: `Encrypt prints an envelope that can be stored directly as a secret setting,
for example when seeding the database from a migration script.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cipher, err := secrets.NewCipher(cfg.Encryption.MasterKey)
		if err != nil {
			return err
		}
		value, err := readStdin(cmd.InOrStdin())
		if err != nil {
			return err
		}
		envelope, err := cipher.Encrypt(value)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), envelope)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every integration can be reached with its current credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withShared(cmd.Context(), func(ctx context.Context, sc *SharedComponents) error {
			results := make(map[string]any)
			failed := 0
			for name, check := range sc.checks() {
				out := check(ctx)
				if !out.Success {
					failed++
				}
				results[name] = out
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d integration check(s) failed", failed)
			}
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd, settingsListCmd, settingsDeleteCmd)
}

// withShared runs fn with fully initialized components.
func withShared(ctx context.Context, fn func(context.Context, *SharedComponents) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, sc)
}

// readStdin reads a single value, trimming the trailing newline.
func readStdin(r io.Reader) (string, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return "", fmt.Errorf("no value on stdin")
	}
	return v, nil
}
