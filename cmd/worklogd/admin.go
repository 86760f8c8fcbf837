package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marcus/worklog/internal/api"
	"github.com/marcus/worklog/internal/serverdb"
	flag "github.com/spf13/pflag"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "users":
		runAdminUsers(args[1:])
	case "keys":
		runAdminKeys(args[1:])
	case "create-key":
		runAdminCreateKey(args[1:])
	case "events":
		runAdminEvents(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: worklogd admin <command> [flags]

Commands:
  users       List registered users
  keys        List a user's API keys
  create-key  Create an API key for a user
  events      Show recent auth and rate limit events`)
}

const dbFlagUsage = "path to worklog.db (default: from WORKLOG_DB_PATH or ./data/worklog.db)"

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		dbPath = api.LoadConfig().DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fail("open database: %v", err)
	}
	return store
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// lookupUser exits when email is empty or unknown.
func lookupUser(store *serverdb.ServerDB, email string) *serverdb.User {
	if email == "" {
		fail("--email is required")
	}
	user, err := store.GetUserByEmail(email)
	if err != nil {
		fail("%v", err)
	}
	if user == nil {
		fail("user not found: %s", strings.ToLower(strings.TrimSpace(email)))
	}
	return user
}

func runAdminUsers(args []string) {
	fs := flag.NewFlagSet("admin users", flag.ExitOnError)
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	users, err := store.ListUsers()
	if err != nil {
		fail("%v", err)
	}
	for _, u := range users {
		name := ""
		if p, err := store.GetProfile(u.ID); err == nil && p != nil {
			name = p.DisplayName
		}
		fmt.Printf("%s  %-32s  %-20s  %s\n", u.ID, u.Email, name, u.CreatedAt.Format(time.RFC3339))
	}
}

func runAdminKeys(args []string) {
	fs := flag.NewFlagSet("admin keys", flag.ExitOnError)
	email := fs.String("email", "", "user email address")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()
	user := lookupUser(store, *email)

	keys, err := store.ListAPIKeys(user.ID)
	if err != nil {
		fail("%v", err)
	}
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		used := "never"
		if k.LastUsedAt != nil {
			used = k.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %s...  %-12s  expires %s  last used %s\n", k.ID, k.KeyPrefix, k.Name, expires, used)
	}
}

func runAdminCreateKey(args []string) {
	fs := flag.NewFlagSet("admin create-key", flag.ExitOnError)
	email := fs.String("email", "", "user email address")
	name := fs.String("name", "", "key name (e.g. ci)")
	ttl := fs.Duration("ttl", 0, "key lifetime (0 = never expires)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *name == "" {
		fail("--name is required")
	}

	store := openDB(*dbPath)
	defer store.Close()
	user := lookupUser(store, *email)

	var expiresAt *time.Time
	if *ttl > 0 {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}

	plaintext, ak, err := store.GenerateAPIKey(user.ID, *name, expiresAt)
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("created API key for %s\n", user.Email)
	fmt.Printf("  name: %s\n", ak.Name)
	fmt.Printf("  key:  %s\n", plaintext)
	fmt.Println("\nSave this key now -- it will not be shown again.")
}

func runAdminEvents(args []string) {
	fs := flag.NewFlagSet("admin events", flag.ExitOnError)
	eventType := fs.String("type", "", "auth event type filter (signed_up, signed_in, signed_out, failed, profile_saved)")
	limit := fs.IntP("limit", "n", 50, "maximum events per section")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	events, err := store.QueryAuthEvents(*eventType, *limit)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println("AUTH EVENTS:")
	for _, e := range events {
		fmt.Printf("  %s  %-13s  %-32s  %s\n", e.CreatedAt.Format(time.RFC3339), e.EventType, e.Email, e.Metadata)
	}

	limited, err := store.RecentRateLimitEvents(*limit)
	if err != nil {
		fail("%v", err)
	}
	fmt.Println("\nRATE LIMIT EVENTS:")
	for _, e := range limited {
		who := e.IP
		if e.KeyID != "" {
			who = e.KeyID
		}
		fmt.Printf("  %s  %-6s  %s\n", e.CreatedAt.Format(time.RFC3339), e.EndpointClass, who)
	}
}
