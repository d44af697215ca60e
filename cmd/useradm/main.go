package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/store"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	// Default timeout for store operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"

	minPasswordLength = 6
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "melodex.db")

	kv, err := store.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open store: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
	}()

	cat := catalog.New(kv)

	switch command {
	case "create":
		if !createAccount(ctx, cat, os.Args[2:]) {
			os.Exit(1)
		}
	case "reset":
		if !resetPassword(ctx, cat, os.Args[2:]) {
			os.Exit(1)
		}
	case "status":
		showStatus(ctx, cat)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Melodex Account Management")
	fmt.Println("")
	fmt.Println("Usage: useradm <command> [username]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  create <username>  - Create an admin account")
	fmt.Println("  reset <username>   - Reset an account's password")
	fmt.Println("  status             - Show configured accounts")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func createAccount(ctx context.Context, cat *catalog.Catalog, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: username required")
		return false
	}
	username := args[0]

	if _, err := cat.GetAccount(ctx, username); err == nil {
		fmt.Fprintf(os.Stderr, "Error: account %q already exists (use reset to change its password)\n", username)
		return false
	}

	password, ok := promptPassword()
	if !ok {
		return false
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to hash password: %v\n", err)
		return false
	}

	account := &catalog.Account{
		Username:     username,
		PasswordHash: string(hash),
		Admin:        true,
		Created:      time.Now(),
	}
	if err := cat.PutAccount(ctx, account); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save account: %v\n", err)
		return false
	}

	fmt.Printf("Admin account %q created.\n", username)
	return true
}

func resetPassword(ctx context.Context, cat *catalog.Catalog, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: username required")
		return false
	}
	username := args[0]

	account, err := cat.GetAccount(ctx, username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: account %q not found\n", username)
		return false
	}

	password, ok := promptPassword()
	if !ok {
		return false
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to hash password: %v\n", err)
		return false
	}

	account.PasswordHash = string(hash)
	if err := cat.PutAccount(ctx, account); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update password: %v\n", err)
		return false
	}

	fmt.Println("Password updated successfully.")
	return true
}

func promptPassword() ([]byte, bool) {
	fmt.Print("New Password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		return nil, false
	}

	if len(password) < minPasswordLength {
		fmt.Fprintf(os.Stderr, "Error: Password must be at least %d characters\n", minPasswordLength)
		return nil, false
	}

	return password, true
}

func showStatus(ctx context.Context, cat *catalog.Catalog) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	count := 0
	admins := 0
	err := cat.EachAccount(ctx, func(a *catalog.Account) error {
		count++
		if a.Admin {
			admins++
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list accounts: %v\n", err)
		return
	}

	if count == 0 {
		fmt.Println("Status: No accounts configured (auto-sharing disabled until an admin exists)")
		return
	}
	fmt.Printf("Status: %d account(s) configured, %d admin(s)\n", count, admins)
}
