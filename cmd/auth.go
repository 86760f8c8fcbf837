package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/marcus/worklog/internal/identity"
	"github.com/marcus/worklog/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Log in to the worklog server",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}

		c := newClient(cmd)
		ctx, cancel := withTimeout(cmd)
		defer cancel()

		if err := c.provider.SignIn(ctx, email, password); err != nil {
			output.Error("login: %v", err)
			return err
		}
		output.Success("Logged in as %s", c.provider.Session().Identity.Label())
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:     "signup",
	Short:   "Create an account on the worklog server",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := promptCredentials(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")

		c := newClient(cmd)
		ctx, cancel := withTimeout(cmd)
		defer cancel()

		if err := c.provider.SignUp(ctx, email, password, name); err != nil {
			switch {
			case errors.Is(err, identity.ErrAccountCreate):
				output.Error("could not create account: %v", errors.Unwrap(err))
			case errors.Is(err, identity.ErrProfileCreate):
				output.Error("account created but profile failed, log in to retry: %v", err)
			default:
				output.Error("signup: %v", err)
			}
			return err
		}
		output.Success("Signed up and logged in as %s", c.provider.Session().Identity.Label())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Log out and revoke the saved key",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		ctx, cancel := withTimeout(cmd)
		defer cancel()

		if err := c.provider.Restore(ctx); err != nil {
			output.Error("logout: %v", err)
			return err
		}
		if err := c.provider.SignOut(ctx); err != nil {
			if errors.Is(err, identity.ErrNotSignedIn) {
				fmt.Println("Not logged in.")
				return nil
			}
			output.Error("logout: %v", err)
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the signed-in identity",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		ctx, cancel := withTimeout(cmd)
		defer cancel()

		_, id, err := c.authed(ctx)
		if err != nil {
			if errors.Is(err, errNotSignedIn) {
				fmt.Println("Not logged in.")
				return nil
			}
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(id)
		}
		if id.DisplayName != "" {
			fmt.Printf("Name:   %s\n", id.DisplayName)
		}
		fmt.Printf("Email:  %s\n", id.Email)
		fmt.Printf("User:   %s\n", id.UserID)
		fmt.Printf("Server: %s\n", c.url)
		return nil
	},
}

// promptCredentials reads email and password from flags, stdin or the
// terminal, in that order.
func promptCredentials(cmd *cobra.Command) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = line
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", fmt.Errorf("email required")
	}

	var password string
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	switch {
	case fromStdin || !term.IsTerminal(int(os.Stdin.Fd())):
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	default:
		fmt.Print("Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(b)
	}
	if password == "" {
		return "", "", fmt.Errorf("password required")
	}
	return email, password, nil
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().Bool("password-stdin", false, "read the password from stdin")
		rootCmd.AddCommand(c)
	}
	signupCmd.Flags().String("name", "", "display name (default: the part of the email before @)")
	whoamiCmd.Flags().Bool("json", false, "JSON output")
	rootCmd.AddCommand(logoutCmd, whoamiCmd)
}
