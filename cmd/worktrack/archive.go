package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassphrase prompts on stderr and reads a passphrase from the terminal
// without echo. When stdin is not a terminal the first line of stdin is used.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Encrypted database archives",
}

var archiveSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the archive key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "ArchiveSetup")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != pass {
				return errors.New("passphrases do not match")
			}
		}

		if err := a.SetupArchive(cmd.Context(), pass); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Archive.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Archive.PrivateKeyPath)
		return nil
	},
}

var archiveCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Upload an encrypted snapshot of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd, "ArchiveCreate")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.CreateArchive(cmd.Context())
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		fmt.Printf("Archived %s (%d bytes)\n", entry.Key, entry.Size)
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives of this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd, "ArchiveList")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListArchives(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No archives.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %10d  %s\n", e.ModTime.Local().Format("2006-01-02 15:04:05"), e.Size, e.Key)
		}
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore DEST [KEY]",
	Short: "Decrypt an archive to DEST (latest when KEY is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := ""
		if len(args) == 2 {
			key = args[1]
		}

		a, _, err := newApp(cmd, "ArchiveRestore")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		entry, err := a.RestoreArchive(cmd.Context(), key, pass, args[0])
		if err != nil {
			return fmt.Errorf("restoring archive: %w", err)
		}
		fmt.Printf("Restored %s to %s\n", entry.Key, args[0])
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveSetupCmd)
	archiveCmd.AddCommand(archiveCreateCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)

	rootCmd.AddCommand(archiveCmd)
}
