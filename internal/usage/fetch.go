package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const scriptName = "get_claude_usage.py"

// DefaultTimeout bounds a single fetch cycle. The helper script drives an
// interactive CLI session and normally finishes well under 20 seconds; a hung
// CLI must not block the cycle forever.
const DefaultTimeout = 60 * time.Second

// waitDelay is how long Wait may keep draining the output pipe after the
// process group has been signalled, in case a grandchild escaped the group
// and still holds the write end.
const waitDelay = 2 * time.Second

// Fetcher locates the Python interpreter and the helper script, runs the
// script as a child process with an augmented PATH, and returns its combined
// stdout+stderr verbatim. Fields may be overridden before first use (config
// overrides, tests).
type Fetcher struct {
	// Interpreters are candidate interpreter paths, tried in order.
	Interpreters []string
	// ScriptPaths are candidate helper-script paths, tried in order.
	ScriptPaths []string
	// ExtraPathDirs are prepended to the child's PATH so the claude CLI can
	// be found even when the parent process has a minimal environment, as
	// GUI-launched processes on macOS do.
	ExtraPathDirs []string
	// Timeout bounds the child process; on expiry it is killed and the fetch
	// fails with a Timeout failure. Zero means DefaultTimeout.
	Timeout time.Duration

	logger *slog.Logger
}

// NewFetcher returns a Fetcher with the default search lists for the current
// user.
func NewFetcher(logger *slog.Logger) *Fetcher {
	home, _ := os.UserHomeDir()
	return &Fetcher{
		Interpreters: []string{
			"/opt/homebrew/bin/python3",
			"/usr/local/bin/python3",
			"/usr/bin/python3",
		},
		ScriptPaths:   defaultScriptPaths(home),
		ExtraPathDirs: defaultExtraPathDirs(home),
		Timeout:       DefaultTimeout,
		logger:        logger,
	}
}

// defaultScriptPaths returns the script search order: bundled resource dir,
// next to the running executable, then the user data dir.
func defaultScriptPaths(home string) []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, "..", "Resources", scriptName),
			filepath.Join(exeDir, scriptName),
		)
	}
	return append(paths, filepath.Join(home, ".claude-usage-bar", scriptName))
}

func defaultExtraPathDirs(home string) []string {
	dirs := []string{
		filepath.Join(home, ".local", "bin"),
		"/usr/local/bin",
		"/opt/homebrew/bin",
		filepath.Join(home, ".npm-global", "bin"),
	}
	// nvm installs node under a version-specific directory; include them all.
	matches, _ := filepath.Glob(filepath.Join(home, ".nvm", "versions", "node", "*", "bin"))
	return append(dirs, matches...)
}

// Fetch runs one fetch: resolve interpreter and script, launch the script,
// wait for exit, and return the combined output verbatim. All failures are
// classified *Failure values.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	interp, err := f.resolveInterpreter()
	if err != nil {
		return "", err
	}
	script, err := f.resolveScript()
	if err != nil {
		return "", err
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f.logger.Debug("fetch: launching usage script", "interpreter", interp, "script", script)

	cmd := exec.CommandContext(ctx, interp, script)
	cmd.Env = f.childEnv()
	// The script spawns the claude CLI as a grandchild that inherits the
	// output pipe. Run the script in its own process group and kill the
	// whole group on expiry, otherwise a hung grandchild keeps the pipe
	// open and the fetch outlives its deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	out, runErr := cmd.CombinedOutput()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", newFailure(KindTimeout,
				fmt.Sprintf("usage script did not finish within %s", timeout))
		}
		return "", &Failure{
			Kind:    KindLaunchFailure,
			Message: "usage fetch canceled",
			Err:     ctxErr,
		}
	}

	if runErr != nil {
		// The helper script exits non-zero after printing {"error": ...};
		// output it produced still goes to the parser. Only a run that
		// produced nothing is a launch failure.
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || strings.TrimSpace(string(out)) == "" {
			return "", &Failure{
				Kind:    KindLaunchFailure,
				Message: fmt.Sprintf("could not run usage script: %v", runErr),
				Err:     runErr,
			}
		}
	}

	if strings.TrimSpace(string(out)) == "" {
		return "", newFailure(KindEmptyOutput, "usage script produced no output")
	}
	return string(out), nil
}

// FetchAndParse runs one complete pipeline cycle.
func (f *Fetcher) FetchAndParse(ctx context.Context) (*Snapshot, error) {
	text, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

func (f *Fetcher) resolveInterpreter() (string, error) {
	for _, p := range f.Interpreters {
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", newFailure(KindInterpreterNotFound,
		"python3 not found. Install Python 3 (xcode-select --install or brew install python)")
}

func (f *Fetcher) resolveScript() (string, error) {
	for _, p := range f.ScriptPaths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", newFailure(KindScriptNotFound,
		scriptName+" not found. Place it next to the claude-usage-bar binary or in ~/.claude-usage-bar/")
}

// childEnv returns the parent environment with ExtraPathDirs prepended to
// PATH. Existing dirs keep their relative order after the prepended set.
func (f *Fetcher) childEnv() []string {
	env := os.Environ()
	prefix := strings.Join(f.ExtraPathDirs, string(os.PathListSeparator))
	if prefix == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + prefix + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+prefix)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0
}
