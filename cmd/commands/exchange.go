package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/exchange"
	"github.com/dohr-michael/priomatrix/internal/secrets"
)

// NewExportCommand returns the export subcommand.
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write all tasks as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, a, err := openApp(ctx, cmd, events.SourceCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			return writeOutput(cmd.String("output"), func(w io.Writer) error {
				return exchange.Export(w, a.engine.Snapshot().Tasks)
			})
		},
	}
}

// NewImportCommand returns the import subcommand.
func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import tasks from CSV",
		ArgsUsage: "<file.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "merge or replace", Value: string(exchange.ModeMerge)},
			&cli.BoolFlag{Name: "dry-run", Usage: "Only list the parsed candidates"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm replacing the collection"},
		},
		Action: runImport,
	}
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	path, err := requireID(cmd, "import <file.csv>")
	if err != nil {
		return err
	}
	mode, err := exchange.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	candidates, err := exchange.Import(f)
	if errors.Is(err, exchange.ErrNoCandidates) {
		fmt.Println("No valid tasks found in file.")
		return nil
	}
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tSTATUS\tFREQUENCY\tDATE\tTITLE")
		for _, c := range candidates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.SourceID, c.Status, c.Frequency, c.Date, c.Title)
		}
		return w.Flush()
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := exchange.Commit(ctx, a.engine, mode, candidates, cmd.Bool("yes"))
	if errors.Is(err, exchange.ErrConfirmationRequired) {
		return fmt.Errorf("replacing %d task(s) needs --yes: %w", len(a.engine.Snapshot().Tasks), err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d task(s) (%s); collection now holds %d.\n", len(candidates), mode, len(snap.Tasks))
	return nil
}

// NewBackupCommand returns the backup subcommand.
func NewBackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write the whole collection, history included, as YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
			&cli.BoolFlag{Name: "encrypt", Aliases: []string{"e"}, Usage: "Encrypt to the local age key"},
			&cli.BoolFlag{Name: "passphrase", Aliases: []string{"p"}, Usage: "Encrypt with a passphrase"},
		},
		Action: runBackup,
	}
}

func runBackup(ctx context.Context, cmd *cli.Command) error {
	_, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.engine.Snapshot()
	now := a.engine.Now()
	if !cmd.Bool("encrypt") && !cmd.Bool("passphrase") {
		return writeOutput(cmd.String("output"), func(w io.Writer) error {
			return exchange.WriteBackup(w, snap, now)
		})
	}

	recipient, err := backupRecipient(cmd.Bool("passphrase"))
	if err != nil {
		return err
	}
	return writeOutput(cmd.String("output"), func(w io.Writer) error {
		sw, err := secrets.Seal(w, recipient)
		if err != nil {
			return err
		}
		if err := exchange.WriteBackup(sw, snap, now); err != nil {
			return err
		}
		return sw.Close()
	})
}

// NewRestoreCommand returns the restore subcommand.
func NewRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Replace the collection with a YAML backup",
		ArgsUsage: "<backup.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm replacing the collection"},
			&cli.BoolFlag{Name: "passphrase", Aliases: []string{"p"}, Usage: "Decrypt with a passphrase instead of the local key"},
		},
		Action: runRestore,
	}
}

func runRestore(ctx context.Context, cmd *cli.Command) error {
	path, err := requireID(cmd, "restore <backup.yaml> --yes")
	if err != nil {
		return err
	}
	if !cmd.Bool("yes") {
		return fmt.Errorf("restore needs --yes: %w", exchange.ErrConfirmationRequired)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, sealed, err := secrets.Unseal(f, restoreIdentity(cmd.Bool("passphrase")))
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := exchange.Restore(ctx, a.engine, r, true)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d task(s)", len(snap.Tasks))
	if sealed {
		fmt.Print(" from an encrypted backup")
	}
	fmt.Println(".")
	return nil
}

// NewResetCommand returns the reset subcommand.
func NewResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every task",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deleting every task"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !cmd.Bool("yes") {
				return fmt.Errorf("reset needs --yes: %w", exchange.ErrConfirmationRequired)
			}
			ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			previous := len(a.engine.Snapshot().Tasks)
			if _, err := a.engine.Reset(ctx); err != nil {
				return err
			}
			fmt.Printf("Removed %d task(s).\n", previous)
			return nil
		},
	}
}

// writeOutput streams to path, or stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
