package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pevans/historybrief/config"
	"github.com/pevans/historybrief/seen"
	"github.com/pevans/historybrief/sink"
	"github.com/pevans/historybrief/sources"
)

// errChecksFailed is returned when doctor finds an error.
var errChecksFailed = errors.New("doctor found errors")

// doctorReport accumulates check results.
type doctorReport struct {
	w           io.Writer
	verbose     bool
	hasErrors   bool
	hasWarnings bool
}

func (r *doctorReport) ok(format string, args ...any) {
	fmt.Fprintf(r.w, "  ✓ "+format+"\n", args...)
}

func (r *doctorReport) fail(format string, args ...any) {
	fmt.Fprintf(r.w, "  ✗ "+format+"\n", args...)
	r.hasErrors = true
}

func (r *doctorReport) warn(format string, args ...any) {
	fmt.Fprintf(r.w, "  ⚠ Warning: "+format+"\n", args...)
	r.hasWarnings = true
}

func (r *doctorReport) info(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.w, "  "+format+"\n", args...)
	}
}

func newDoctorCmd(opts *options) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			report := &doctorReport{w: w, verbose: verbose}

			fmt.Fprintln(w, "Checking historybrief health...")
			fmt.Fprintln(w)

			fmt.Fprintln(w, "Configuration:")
			a, err := loadApp(opts)
			if err != nil {
				report.fail("%v", err)
				return finishDoctor(report)
			}
			report.ok("Loaded %d sources (%d enabled)", len(a.sources), len(sources.Enabled(a.sources)))
			if err := a.cfg.Validate(); err != nil {
				report.fail("%v", err)
			} else {
				report.ok("Sink %q is configured", a.cfg.Sink)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "Seen State:")
			checkSeen(cmd, a, report)
			fmt.Fprintln(w)

			if a.cfg.Sink == config.SinkArchive || verbose {
				fmt.Fprintln(w, "Archive:")
				checkArchive(a.cfg.ArchiveDir, report)
				fmt.Fprintln(w)
			}

			return finishDoctor(report)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "show detailed diagnostic information")

	return cmd
}

func checkSeen(cmd *cobra.Command, a *app, report *doctorReport) {
	report.info("Backend: %s", a.cfg.Seen.Backend)
	if a.cfg.Seen.DSN != "" {
		report.info("DSN: %s", a.cfg.Seen.DSN)
	}

	store, err := a.openStore()
	if err != nil {
		report.fail("%v", err)
		return
	}
	defer store.Close()

	set, err := store.Load(cmd.Context())
	if err != nil {
		report.fail("Cannot read seen state: %v", err)
		return
	}
	report.ok("Seen state is readable (%d fingerprints)", set.Len())

	if fs, ok := store.(*seen.FileStore); ok {
		checkPermissions(fs.Path(), 0o077, "600", report)
	}
}

func checkArchive(dir string, report *doctorReport) {
	report.info("Path: %s", dir)

	if stat, err := os.Stat(dir); os.IsNotExist(err) {
		report.warn("Archive directory does not exist yet")
		return
	} else if err != nil {
		report.fail("Cannot access archive directory: %v", err)
		return
	} else if !stat.IsDir() {
		report.fail("Path exists but is not a directory")
		return
	}

	archive, err := sink.NewArchive(dir)
	if err != nil {
		report.fail("%v", err)
		return
	}
	runs, err := archive.Runs()
	if err != nil {
		report.fail("Cannot list runs: %v", err)
		return
	}
	report.ok("Archive is accessible (%d runs)", len(runs))
	checkPermissions(dir, 0o077, "700", report)
}

// checkPermissions warns when path is readable by group or others.
func checkPermissions(path string, mask os.FileMode, expected string, report *doctorReport) {
	stat, err := os.Stat(path)
	if err != nil {
		return
	}
	perm := stat.Mode().Perm()
	report.info("Permissions: %o", perm)
	if perm&mask != 0 {
		report.warn("%s has overly permissive permissions", path)
		fmt.Fprintf(report.w, "    Current: %o, expected: %s\n", perm, expected)
	}
}

func finishDoctor(report *doctorReport) error {
	switch {
	case report.hasErrors:
		fmt.Fprintln(report.w, "✗ Checks failed")
		return errChecksFailed
	case report.hasWarnings:
		fmt.Fprintln(report.w, "✓ Functional but has warnings")
		if !report.verbose {
			fmt.Fprintln(report.w, "  Run 'historybrief doctor --verbose' for more details")
		}
	default:
		fmt.Fprintln(report.w, "✓ All checks passed")
	}
	return nil
}
