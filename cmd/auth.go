package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dwhload/internal/config"
	"dwhload/internal/security"
	"dwhload/internal/ui"
	"dwhload/pkg/errors"
)

var passwordStdin bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the cluster password outside dwh.cfg",
	Long: `Store the cluster password in the OS keyring (or an encrypted file when no
keyring is available) so CLUSTER.DB_PASSWORD can be left empty, or encrypt
it for use as an ENC[...] value in dwh.cfg.`,
}

var authSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Store the password for the configured cluster user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		account := security.Account(cfg.Cluster)

		password, err := readPassword(cmd, fmt.Sprintf("Password for %s:", account))
		if err != nil {
			return err
		}

		store, err := security.NewCredentialManager()
		if err != nil {
			return err
		}
		if err := store.SetPassword(account, password); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("Stored password for %s (%s)", account, store.Backend()))
		return nil
	},
}

var authDeletePasswordCmd = &cobra.Command{
	Use:   "delete-password",
	Short: "Remove the stored password for the configured cluster user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		account := security.Account(cfg.Cluster)

		store, err := security.NewCredentialManager()
		if err != nil {
			return err
		}
		if err := store.DeletePassword(account); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("Removed password for %s", account))
		return nil
	},
}

var authEncryptPasswordCmd = &cobra.Command{
	Use:   "encrypt-password",
	Short: "Print an ENC[...] value for CLUSTER.DB_PASSWORD",
	Long: `Encrypt a password with AES-256-GCM and print it as an ENC[...] value that
can be pasted into dwh.cfg.

The key is derived from DWHLOAD_ENCRYPTION_KEY when set, otherwise from the
hostname and home directory, so the value only decrypts on this machine.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd, "Password to encrypt:")
		if err != nil {
			return err
		}
		encrypted, err := config.EncryptPassword(password)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt password")
		}
		fmt.Fprintln(cmd.OutOrStdout(), encrypted)
		return nil
	},
}

// readPassword reads one line from stdin with --password-stdin, otherwise
// prompts.
func readPassword(cmd *cobra.Command, message string) (string, error) {
	if !passwordStdin {
		return ui.Password(message, "The password is not echoed")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New(errors.ErrCodeConfigMissing, "Empty password on stdin")
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetPasswordCmd)
	authCmd.AddCommand(authDeletePasswordCmd)
	authCmd.AddCommand(authEncryptPasswordCmd)
	authCmd.PersistentFlags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
}
