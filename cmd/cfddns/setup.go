package main

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"golang.org/x/term"

	"github.com/ddnskit/ddns"
)

// resolveToken returns the API token, preferring CF_DNS_API_TOKEN and
// falling back to the key file. When the key file is missing and stdin is a
// terminal, first-run setup prompts for a token, verifies it against the
// API, and writes the file with restricted permissions.
func resolveToken(cfg *config, keyFile string) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}

	_, err := os.Stat(keyFile)
	if os.IsNotExist(err) {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return "", &ddns.ConfigError{Field: "CF_DNS_API_TOKEN", Reason: fmt.Sprintf("not set and key file %q does not exist", keyFile)}
		}
		if err := runSetup(keyFile); err != nil {
			return "", fmt.Errorf("setup: %w", err)
		}
	}
	if err := verifyPermissions(keyFile); err != nil {
		return "", err
	}
	return readKey(keyFile)
}

func runSetup(keyFile string) error {
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Printf("Enter Cloudflare API Key: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := string(bytekey)

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}

	f, err := os.OpenFile(keyFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", keyFile, err)
	}
	defer f.Close()
	fmt.Fprintln(f, key)
	fmt.Printf("token written to \"%s\"\n", keyFile)
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}

	return nil
}
