package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/auth"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	loginPassword string
	loginGoogle   bool
)

// loginCmd signs in to the portal
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in to the portal",
	Long: `Sign in with portal credentials or through Google.

With an email argument the password comes from --password or a hidden
prompt. With --google the command prints the consent URL and waits for
the pasted authorization code.

Examples:
  hulab login researcher@connect.polyu.hk
  hulab login --google`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd ends the session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and wipe the stored session",
	RunE:  runLogout,
}

// whoamiCmd shows the current session
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "Sign in through Google")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		var (
			session auth.Session
			err     error
		)
		if loginGoogle {
			session, err = googleLogin(ctx, client)
		} else {
			session, err = passwordLogin(ctx, client, args)
		}
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(session.User)
		}
		name := session.User.Name
		if name == "" {
			name = session.User.Email
		}
		fmt.Printf("Signed in as %s\n", name)
		if !session.ExpiresAt.IsZero() {
			fmt.Printf("Session expires %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	})
}

// passwordLogin collects credentials and signs in with them.
func passwordLogin(ctx context.Context, client *app.Client, args []string) (auth.Session, error) {
	email := ""
	if len(args) > 0 {
		email = args[0]
	}
	if email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return auth.Session{}, fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return auth.Session{}, fmt.Errorf("email must not be empty")
	}

	password := loginPassword
	if password == "" {
		fmt.Print("Password: ")
		raw, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return auth.Session{}, fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	return client.Login(ctx, email, password)
}

// googleLogin walks the user through the consent screen by hand: print
// the URL, wait for the pasted authorization code, exchange it.
func googleLogin(ctx context.Context, client *app.Client) (auth.Session, error) {
	url, err := client.Sessions().AuthCodeURL(uuid.NewString())
	if err != nil {
		return auth.Session{}, err
	}

	fmt.Println("Open this URL in a browser and approve access:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	fmt.Print("Paste the authorization code: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return auth.Session{}, fmt.Errorf("read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return auth.Session{}, fmt.Errorf("authorization code must not be empty")
	}
	return client.LoginWithGoogle(ctx, code)
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		sessions := client.Sessions()
		session, ok := sessions.Current()
		if !ok {
			return fmt.Errorf("not signed in")
		}

		if jsonOut {
			return printJSON(session)
		}

		name := session.User.Name
		if name == "" {
			name = session.User.Email
		}
		fmt.Printf("%s <%s>\n", name, session.User.Email)
		if session.User.Role != "" {
			fmt.Printf("Role:    %s\n", session.User.Role)
		}
		switch {
		case !sessions.Valid():
			fmt.Println("Session: expired, sign in again")
		case session.ExpiresAt.IsZero():
			fmt.Println("Session: valid")
		default:
			fmt.Printf("Session: valid until %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	})
}
