package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// LogHeaderPrefix marks the start of each commit header in log output.
const LogHeaderPrefix = "--"

// logFormat renders commit headers as "--<hash>|<author>|<date>".
const logFormat = "--pretty=format:" + LogHeaderPrefix + "%H|%an|%ad"

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
// Paths in the output are not octal-escaped, so non-ASCII names come back verbatim.
// Context cancellation and deadlines are returned as the context error.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-c", "core.quotePath=false", "-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s. If this is not a Git repository, verify the path or run 'git init'", repoPath, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ListFiles implements the GitClient interface.
func (c *LocalGitClient) ListFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := c.Run(ctx, repoPath, "ls-files", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListTrackedFiles implements the GitClient interface.
func (c *LocalGitClient) ListTrackedFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := c.Run(ctx, repoPath, "ls-files", "--cached")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// HasCommitsSince implements the GitClient interface.
func (c *LocalGitClient) HasCommitsSince(ctx context.Context, repoPath string, since time.Time) (bool, error) {
	args := []string{"rev-list", "-n", "1", "HEAD"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(DateTimeFormat))
	}
	out, err := c.Run(ctx, repoPath, args...)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// GetActivityLog implements the GitClient interface.
func (c *LocalGitClient) GetActivityLog(ctx context.Context, repoPath string, since time.Time) ([]byte, error) {
	args := []string{"log", "--numstat", logFormat, "--date=iso-strict"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(DateTimeFormat))
	}
	return c.Run(ctx, repoPath, args...)
}

// GetFileLog implements the GitClient interface.
func (c *LocalGitClient) GetFileLog(ctx context.Context, repoPath string, path string, since time.Time) ([]byte, error) {
	args := []string{"log", "--numstat", logFormat, "--date=iso-strict"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(DateTimeFormat))
	}
	args = append(args, "--", path)
	return c.Run(ctx, repoPath, args...)
}

// GetBlame implements the GitClient interface.
func (c *LocalGitClient) GetBlame(ctx context.Context, repoPath string, path string) ([]byte, error) {
	return c.Run(ctx, repoPath, "blame", "--line-porcelain", "HEAD", "--", path)
}

// splitLines splits command output into non-empty trimmed paths.
func splitLines(out []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	files := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			files = append(files, UnquotePath(l))
		}
	}
	return files
}

// UnquotePath decodes a path git wrapped in double quotes. Git still quotes names
// holding quotes, backslashes or control characters when core.quotePath is off.
// Its C-style escapes, octal bytes included, are valid Go string escapes.
func UnquotePath(p string) string {
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return p
	}
	if unquoted, err := strconv.Unquote(p); err == nil {
		return unquoted
	}
	return p
}
