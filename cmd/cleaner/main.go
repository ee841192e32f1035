// Command cleaner merges spreadsheets from disk and writes the cleaned
// Name/Contacts workbook without starting the web server.
//
//	cleaner -name Name -contact Phone [-out file.xlsx] [-skip-unreadable] a.xlsx b.xlsx
//	cleaner -columns a.xlsx b.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/JonMunkholm/sheetclean/internal/sheet"
	"github.com/joho/godotenv"
)

type options struct {
	name, contact  string
	out            string
	sheet          string
	skipUnreadable bool
	columns        bool
	paths          []string
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	default:
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the technical error, followed by the user message when
// err is one the pipeline knows how to explain.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "cleaner: %v\n", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("cleaner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.name, "name", "", "column holding names")
	fs.StringVar(&o.contact, "contact", "", "column holding contact numbers")
	fs.StringVar(&o.out, "out", "", "output path (default cleanedData_<timestamp>.xlsx)")
	fs.StringVar(&o.sheet, "sheet", "", "worksheet to read from workbooks (default first sheet)")
	fs.BoolVar(&o.skipUnreadable, "skip-unreadable", false, "skip files that cannot be read instead of failing")
	fs.BoolVar(&o.columns, "columns", false, "print the merged columns and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: cleaner -name <col> -contact <col> [-out file.xlsx] [-skip-unreadable] files...")
		fmt.Fprintln(fs.Output(), "       cleaner -columns files...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.paths = fs.Args()
	if len(o.paths) == 0 {
		fs.Usage()
		return o, session.ErrNoFiles
	}
	if !o.columns && (o.name == "" || o.contact == "") {
		fs.Usage()
		return o, fmt.Errorf("both -name and -contact are required")
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	// A missing .env is normal for one-shot runs.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	policy := session.UnreadablePolicy(cfg.Upload.UnreadablePolicy)
	if o.skipUnreadable {
		policy = session.PolicySkip
	}

	files, err := readFiles(o.paths, cfg.Upload.MaxFileSize)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flow := session.NewWorkflow(nil, sheet.Codec{Sheet: o.sheet}, nil, nil, session.Options{
		Policy:        policy,
		MaxFiles:      cfg.Upload.MaxFiles,
		DecodeWorkers: cfg.Upload.DecodeWorkers,
	})

	if o.columns {
		merged, warnings, err := flow.Inspect(ctx, files)
		if err != nil {
			return err
		}
		printWarnings(stderr, warnings)
		for _, c := range merged.Columns {
			fmt.Fprintln(stdout, c)
		}
		return nil
	}

	res, err := flow.Process(ctx, files, o.name, o.contact)
	if err != nil {
		return err
	}
	printWarnings(stderr, res.Warnings)

	out := o.out
	if out == "" {
		out = res.Export.Filename
	}
	if err := os.WriteFile(out, res.Export.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	slog.Info("workbook written",
		"file", out,
		"rows", res.Stats.Rows,
		"full", res.Stats.Full,
		"short", res.Stats.Short,
		"empty", res.Stats.Empty,
	)
	fmt.Fprintf(stdout, "%s: %d rows (%d with 10-digit contacts, %d short, %d empty)\n",
		out, res.Stats.Rows, res.Stats.Full, res.Stats.Short, res.Stats.Empty)
	return nil
}

// readFiles loads each path, rejecting files over maxSize bytes.
func readFiles(paths []string, maxSize int64) ([]session.File, error) {
	files := make([]session.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("file too large: %s is %d bytes, limit is %d", p, info.Size(), maxSize)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, session.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
