package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"reelgrab/pkg/auth"
	"reelgrab/pkg/config"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/ui"
)

var sessionStore string

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the optional Instagram session",
	Long: `Manage the Instagram session cookies sent by the page and embed strategies.

A session is optional. Without one those strategies only see what a logged-out
visitor sees. Sessions are stored in:
  - the system keychain (when available)
  - an encrypted file under the user config directory
  - REELGRAB_SESSION_* environment variables (read-only)`,
}

var sessionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store session cookies",
	Args:  cobra.NoArgs,
	RunE:  runSessionSet,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runSessionClear,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionSetCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	sessionCmd.PersistentFlags().StringVar(&sessionStore, "store", auth.StoreAuto, "session store (auto, keyring, file, env)")
}

func newSessionManager() (*auth.Manager, error) {
	manager, err := auth.NewManager(sessionStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return manager, nil
}

func runSessionSet(cmd *cobra.Command, args []string) error {
	manager, err := newSessionManager()
	if err != nil {
		return err
	}
	reader := bufio.NewReader(os.Stdin)

	auth.WriteCookieGuide(ui.Output)
	fmt.Fprintln(ui.Output)

	fmt.Fprint(ui.Output, "sessionid cookie value: ")
	sessionID, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read session ID: %w", err)
	}

	fmt.Fprint(ui.Output, "csrftoken cookie value: ")
	csrfToken, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read CSRF token: %w", err)
	}

	fmt.Fprint(ui.Output, "User agent of that browser (optional, Enter to skip): ")
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		SessionID: strings.TrimSpace(sessionID),
		CSRFToken: strings.TrimSpace(csrfToken),
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	store, err := manager.Save(session)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Session saved to %s", store))
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	manager, err := newSessionManager()
	if err != nil {
		return err
	}
	session, err := manager.Load()
	if err != nil {
		ui.PrintWarning("No session stored", err)
		return nil
	}

	masked := auth.SanitizeSession(session)
	ui.PrintInfo("Stores", strings.Join(manager.Stores(), ", "))
	ui.PrintInfo("Session ID", masked.SessionID)
	ui.PrintInfo("CSRF token", masked.CSRFToken)
	ui.PrintInfo("User agent", lo.Ternary(masked.UserAgent == "", "(default)", masked.UserAgent))
	if !masked.LastModified.IsZero() {
		ui.PrintInfo("Saved", masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	manager, err := newSessionManager()
	if err != nil {
		return err
	}
	if err := manager.Delete(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	ui.PrintSuccess("Session cleared")
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// loadSession returns the session configured inline or found in the
// configured store. A missing session is not an error.
func loadSession(cfg *config.Config, log logger.Logger) *auth.Session {
	if cfg.Session.ID != "" {
		return &auth.Session{SessionID: cfg.Session.ID, CSRFToken: cfg.Session.CSRFToken}
	}
	if cfg.Session.Store == auth.StoreNone {
		return nil
	}

	manager, err := auth.NewManager(cfg.Session.Store)
	if err != nil {
		log.WithError(err).Warn("Session store unavailable, continuing without session")
		return nil
	}
	session, err := manager.Load()
	if err != nil {
		log.WithError(err).Debug("No stored session")
		return nil
	}
	log.WithField("session_id", auth.MaskString(session.SessionID)).Info("Using stored Instagram session")
	return session
}
