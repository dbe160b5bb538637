package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"instacollector/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram credentials",
	Long: `Manage stored Instagram credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store Instagram credentials securely",
	Long: `Store Instagram session cookies in the system keychain or an
encrypted file.

You will be prompted for:
  - Instagram username (if not provided)
  - Session ID (from the sessionid cookie)
  - CSRF Token (from the csrftoken cookie)
  - User Agent (optional, press Enter for default)

To get these values:
1. Log into Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Find and copy the sessionid and csrftoken values`,
	Example: `  # Interactive login
  instacollector auth login

  # Login with username
  instacollector auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Instagram accounts with sanitized credential information.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		username = promptLine(reader, "Instagram username: ")
	}
	if username == "" {
		fmt.Fprintln(os.Stderr, "username is required")
		os.Exit(1)
	}

	sessionID := promptSecret("Session ID: ")
	if sessionID == "" {
		fmt.Fprintln(os.Stderr, "session ID is required")
		os.Exit(1)
	}

	csrfToken := promptSecret("CSRF Token: ")
	if csrfToken == "" {
		fmt.Fprintln(os.Stderr, "CSRF token is required")
		os.Exit(1)
	}

	userAgent := promptLine(reader, "User Agent (optional): ")

	account := &auth.Account{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: userAgent,
	}

	if err := manager.Store(account); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("Credentials stored for %s\n", username)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if err := manager.Delete(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("Credentials removed for %s\n", args[0])
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list accounts:", err)
		os.Exit(1)
	}

	if len(accounts) == 0 {
		fmt.Println("No stored accounts")
		return
	}

	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%s\n  session: %s\n  csrf:    %s\n  updated: %s\n",
			sanitized.Username, sanitized.SessionID, sanitized.CSRFToken,
			sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func promptLine(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptSecret(label string) string {
	fmt.Print(label)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
