// Command manager-token mints a bearer token for the order backend, signed
// with the same AUTH_SECRET the server reads.
//
//	manager-token -sub avery -role manager -ttl 12h
//	manager-token -hash-pin            (reads a PIN on stdin, prints MANAGER_PIN_HASH)
//
// Manager tokens need the manager PIN on stdin when MANAGER_PIN_HASH is set.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gooeytea/backend/internal/config"
	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/httpapi"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "", "token subject, usually the employee name or id")
	role := flag.String("role", domain.RoleManager, "cashier or manager")
	ttl := flag.Duration("ttl", cfg.AccessTokenTTL(), "token lifetime")
	hashPIN := flag.Bool("hash-pin", false, "hash a manager PIN read from stdin and exit")
	flag.Parse()

	if *hashPIN {
		hash, err := httpapi.HashPIN(readLine(os.Stdin))
		if err != nil {
			fail(1, "hash pin: %v", err)
		}
		fmt.Println(hash)
		return
	}

	if len(cfg.AuthSecret) < 32 {
		fail(2, "AUTH_SECRET must be set and at least 32 characters")
	}
	if *role == domain.RoleManager && cfg.ManagerPINHash != "" {
		fmt.Fprint(os.Stderr, "manager PIN: ")
		if !httpapi.VerifyPIN(cfg.ManagerPINHash, readLine(os.Stdin)) {
			fail(1, "manager PIN rejected")
		}
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, *ttl)
	token, expiresAt, err := auth.IssueToken(*subject, *role)
	if err != nil {
		fail(1, "issue token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}

func readLine(r io.Reader) string {
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(line)
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
