package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-web2pdf/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// serveFlags holds serve command flags.
// Empty or zero values leave the lower-precedence setting untouched.
type serveFlags struct {
	common       commonFlags
	port         int
	browserBin   string
	extensionDir string
	navTimeout   string
	logFormat    string
}

// doctorFlags holds doctor command flags.
type doctorFlags struct {
	common commonFlags
	json   bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings and errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log debug details")
}

// addServeFlags registers serve flags. Completion reuses it so the
// generated scripts never drift from the parser.
func addServeFlags(fs *flag.FlagSet, f *serveFlags) {
	addCommonFlags(fs, &f.common)
	fs.IntVarP(&f.port, "port", "p", 0, "listening port (default 8000)")
	fs.StringVar(&f.browserBin, "browser-bin", "", "browser executable (default: rod lookup)")
	fs.StringVar(&f.extensionDir, "extension-dir", "", "unpacked extension directory")
	fs.StringVar(&f.navTimeout, "nav-timeout", "", "soft navigation timeout (e.g., 90s, 3m)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json")
}

func addDoctorFlags(fs *flag.FlagSet, f *doctorFlags) {
	addCommonFlags(fs, &f.common)
	fs.BoolVar(&f.json, "json", false, "output as JSON")
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &serveFlags{}
	addServeFlags(fs, f)

	fs.Usage = func() { printServeUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// parseDoctorFlags parses doctor command flags.
func parseDoctorFlags(args []string, stderr io.Writer) (*doctorFlags, error) {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &doctorFlags{}
	addDoctorFlags(fs, f)

	fs.Usage = func() { printDoctorUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// applyCommonFlags applies verbosity flags. --verbose wins over --quiet.
func applyCommonFlags(f *commonFlags, cfg *config.Config) {
	switch {
	case f.verbose:
		cfg.Log.Level = "debug"
	case f.quiet:
		cfg.Log.Level = "warn"
	}
}

// applyServeFlags applies explicitly set flags over cfg.
func applyServeFlags(f *serveFlags, cfg *config.Config) {
	applyCommonFlags(&f.common, cfg)
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.browserBin != "" {
		cfg.Browser.Bin = f.browserBin
	}
	if f.extensionDir != "" {
		cfg.Browser.ExtensionDir = f.extensionDir
	}
	if f.navTimeout != "" {
		cfg.Render.NavigationTimeout = f.navTimeout
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
}
