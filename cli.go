package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/metcalfc/folio/internal/config"
	"github.com/metcalfc/folio/internal/reader"
	"github.com/metcalfc/folio/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errNoInput = errors.New("no input provided; pass a file or pipe text to stdin")

// options are the per-run flags that are not configuration.
type options struct {
	cfgFile string
	fresh   bool
	page    int
	toc     bool
}

// runFunc starts a front end on an opened session.
type runFunc func(cmd *cobra.Command, s *session, opts *options) error

func newRootCmd(name, short string, run runFunc) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   name + " [file]",
		Short: short,
		Long: short + `

Supported inputs are plain text, Markdown, HTML, EPUB, PDF and DOCX files, or
text piped to stdin. The last page and zoom of every file are remembered.`,
		Example: fmt.Sprintf(`  %[1]s book.epub            Open a book where you left it
  %[1]s --fresh paper.pdf    Start at page 1
  %[1]s --page 12 notes.md   Open at page 12
  cat notes.txt | %[1]s      View stdin`, name),
		Version:      version,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			path := ""
			if len(args) > 0 {
				path = args[0]
			} else if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
				return errNoInput
			}

			logPath := cfg.LogFile
			if logPath == "" {
				dir := cfg.StateDir
				if dir == "" {
					dir = state.DefaultDir()
				}
				logPath = filepath.Join(dir, name+".log")
			}
			log, closer, err := config.NewLogger(logPath, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer closer.Close()

			s, err := newSession(cfg, log, path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer s.close()

			scale := 0.0
			if cmd.Flags().Changed("scale") {
				scale = cfg.Scale
			}
			s.restore(opts.fresh, opts.page, scale)
			return run(cmd, s, opts)
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("%s %s (commit: %s, built: %s)\n", name, version, commit, date))

	f := cmd.Flags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (default: ./config.yaml or "+filepath.Join(config.Dir(), "config.yaml")+")")
	f.BoolVar(&opts.fresh, "fresh", false, "ignore the saved page and zoom")
	f.IntVar(&opts.page, "page", 0, "open at this page")
	f.BoolVar(&opts.toc, "toc", false, "show the table of contents at startup")
	f.Float64("scale", 1.0, "initial zoom (0.25 to 3.0)")
	f.Int("page-width", 80, "text width in columns at 1x zoom")
	f.Int("lines-per-page", reader.DefaultLinesPerPage, "lines per page for plain text")
	f.String("state-dir", "", "directory for saved positions and logs")
	f.String("log-file", "", "log file (default: <state-dir>/"+name+".log)")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.Bool("watch", true, "reload the document when the file changes")
	f.String("model", "", "summarization model")

	cmd.AddCommand(newVersionCmd(name), newFormatsCmd(), newConfigCmd())
	return cmd
}

func newVersionCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  Date:   %s\n", date)
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported document formats",
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range reader.SupportedFormats() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Plain text (any other file)")
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(config.Dir(), "config.yaml")
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
