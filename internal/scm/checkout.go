// Package scm is the narrow version-control collaborator the engine
// calls to materialize a working copy. Everything goes through the git
// binary; the engine treats the result as an opaque directory.
package scm

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Checkout clones repoRef into dir. A ref of the form "url@branch"
// checks out that branch; a bare URL checks out the default branch.
func Checkout(ctx context.Context, repoRef, dir string) error {
	url, branch := SplitRef(repoRef)

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %v: %s", repoRef, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SplitRef splits a repo ref into URL and optional branch. The branch
// separator is the last "@" after the final "/" so that user@host URLs
// survive intact.
func SplitRef(repoRef string) (url, branch string) {
	slash := strings.LastIndex(repoRef, "/")
	at := strings.LastIndex(repoRef, "@")
	if at > slash {
		return repoRef[:at], repoRef[at+1:]
	}
	return repoRef, ""
}
