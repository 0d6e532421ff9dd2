package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/fileutil"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status    string        `json:"status"` // "ready", "warnings", "errors"
	Browser   browserInfo   `json:"browser"`
	Extension extensionInfo `json:"extension"`
	Server    serverInfo    `json:"server"`
	Env       envInfo       `json:"environment"`
	Warnings  []string      `json:"warnings,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
}

// browserInfo holds Chrome/Chromium detection results.
type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Managed bool   `json:"managed"` // rod downloads its own Chromium
}

// extensionInfo holds extension directory checks.
type extensionInfo struct {
	ID       string `json:"id,omitempty"`
	Dir      string `json:"dir,omitempty"`
	Found    bool   `json:"found"`
	Manifest bool   `json:"manifest"`
}

// serverInfo holds listener checks.
type serverInfo struct {
	Port      int  `json:"port"`
	Available bool `json:"available"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Production    bool   `json:"production"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	flags, err := parseDoctorFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	cfg, err := resolveConfig(flags.common.config, nil)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg)

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks against a resolved config.
func runDoctor(cfg *config.Config) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			Production: strings.EqualFold(os.Getenv("WEB2PDF_ENV"), productionMode),
		},
	}

	checkBrowser(result, cfg.Browser.Bin)
	checkExtension(result, cfg)
	checkPort(result, cfg.Server.Port)
	checkEnvironment(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkBrowser detects the browser that serve would launch.
func checkBrowser(result *doctorResult, bin string) {
	if bin == "" {
		// Use rod's launcher to locate Chrome
		var found bool
		bin, found = launcher.LookPath()
		if !found {
			result.Browser.Managed = true
			result.Warnings = append(result.Warnings,
				"No local Chrome/Chromium found; rod will download one on first launch. "+
					"In production set WEB2PDF_ENV=production and WEB2PDF_BROWSER_BIN")
			return
		}
	}

	// Verify it exists
	if _, err := os.Stat(bin); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Browser not found at %s", bin))
		return
	}

	result.Browser.Found = true
	result.Browser.Path = bin

	// Get version by running chrome --version
	cmd := exec.Command(bin, "--version") // #nosec G204 -- operator-provided browser path
	out, err := cmd.Output()
	if err == nil {
		result.Browser.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get browser version: %v", err))
	}
}

// checkExtension verifies the unpacked extension is in place.
func checkExtension(result *doctorResult, cfg *config.Config) {
	result.Extension.ID = cfg.Extension.ID
	dir := cfg.Browser.ExtensionDir
	if dir == "" {
		if cfg.Extension.ID != "" {
			result.Errors = append(result.Errors,
				"extension.id is set but browser.extensionDir is empty")
		}
		return
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	result.Extension.Dir = dir

	if !fileutil.DirExists(dir) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Extension directory not found: %s (set WEB2PDF_EXTENSION_DIR)", dir))
		return
	}
	result.Extension.Found = true

	if fileutil.HasExtensionManifest(dir) {
		result.Extension.Manifest = true
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("No manifest.json in %s; the browser may refuse to load it", dir))
	}
}

// checkPort reports whether the configured port can be bound.
func checkPort(result *doctorResult, port int) {
	result.Server.Port = port

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Port %d is not available: %v", port, err))
		return
	}
	_ = ln.Close()
	result.Server.Available = true
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	// Detect container (multi-signal approach)
	result.Env.Container, result.Env.ContainerHint = isContainer()

	// Detect CI environments
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	// Containers rarely allow rod to download a browser
	if result.Env.Container && !result.Env.Production {
		result.Warnings = append(result.Warnings,
			"Container detected but WEB2PDF_ENV is not production. Set WEB2PDF_ENV=production and WEB2PDF_BROWSER_BIN")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	// Explicit override (highest priority)
	if os.Getenv("WEB2PDF_CONTAINER") == "1" {
		return true, "WEB2PDF_CONTAINER=1"
	}
	// Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn / general container indicator
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "web2pdf doctor")
	fmt.Fprintln(w)

	// Browser section
	fmt.Fprintln(w, "Browser")
	switch {
	case r.Browser.Found:
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Browser.Path)
		if r.Browser.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Browser.Version)
		}
	case r.Browser.Managed:
		fmt.Fprintln(w, "  [WARN] Not installed; rod will download Chromium")
	default:
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	// Extension section
	fmt.Fprintln(w, "Extension")
	switch {
	case r.Extension.Dir == "":
		fmt.Fprintln(w, "  [OK] Disabled")
	case r.Extension.Found:
		fmt.Fprintf(w, "  [OK] Directory: %s\n", r.Extension.Dir)
		if r.Extension.Manifest {
			fmt.Fprintln(w, "  [OK] manifest.json present")
		}
		if r.Extension.ID != "" {
			fmt.Fprintf(w, "  [OK] Bootstrap: %s\n", r.Extension.ID)
		}
	default:
		fmt.Fprintf(w, "  [ERROR] Directory not found: %s\n", r.Extension.Dir)
	}
	fmt.Fprintln(w)

	// Server section
	fmt.Fprintln(w, "Server")
	if r.Server.Available {
		fmt.Fprintf(w, "  [OK] Port %d available\n", r.Server.Port)
	} else {
		fmt.Fprintf(w, "  [WARN] Port %d in use\n", r.Server.Port)
	}
	fmt.Fprintln(w)

	// Environment section
	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Production {
		fmt.Fprintln(w, "  [OK] Mode: production")
	}
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	// Warnings
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	// Errors
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	// Final status
	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to serve")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
