package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the URL to PDF HTTP service")
	fmt.Fprintln(w, "  doctor     Check browser, extension, and port setup")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  completion Generate shell completion script")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'web2pdf help <command>' for details on a specific command.")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Launch the browser, configure its extension, and serve")
	fmt.Fprintln(w, "GET /generate-pdf?url=<url>. Jobs run one at a time in arrival order.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -p, --port <n>            Listening port (default 8000)")
	fmt.Fprintln(w, "      --browser-bin <path>  Browser executable")
	fmt.Fprintln(w, "      --extension-dir <dir> Unpacked extension directory")
	fmt.Fprintln(w, "      --nav-timeout <d>     Soft navigation timeout (e.g., 90s)")
	fmt.Fprintln(w, "      --log-format <s>      Log format: text, json")
	fmt.Fprintln(w, "  -q, --quiet               Only log warnings and errors")
	fmt.Fprintln(w, "  -v, --verbose             Log debug details")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  PORT                      Listening port")
	fmt.Fprintln(w, "  WEB2PDF_ENV=production    Use WEB2PDF_BROWSER_BIN (or ROD_BROWSER_BIN)")
	fmt.Fprintln(w, "  WEB2PDF_CONFIG            Config file name or path")
	fmt.Fprintln(w, "  WEB2PDF_EXTENSION_DIR     Unpacked extension directory")
	fmt.Fprintln(w, "  WEB2PDF_LOG_LEVEL         debug, info, warn, error")
	fmt.Fprintln(w, "  WEB2PDF_LOG_FORMAT        text, json")
	fmt.Fprintln(w, "  WEB2PDF_NAV_TIMEOUT       Soft navigation timeout")
	fmt.Fprintln(w, "  WEB2PDF_CONTAINER=1       Mark a container run for doctor")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Precedence: flags > environment > config file > defaults.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf doctor [--json] [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that serve can start: browser, extension directory, port.")
	fmt.Fprintln(w, "Exits 1 when errors are found.")
}

// printConfigUsage prints usage for the config command.
func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf config [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the configuration serve would use, as YAML.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "config":
		printConfigUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: web2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: web2pdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
