package main

import (
	"context"
	"errors"
	"net"

	"fstore/internal/api"
)

// codeHints maps server error codes to a follow-up the user can act on.
var codeHints = map[string]string{
	"unauthorized":       "admin routes need FSTORE_ADMIN_TOKEN matching the server's admin.token_hash.",
	"forbidden":          "PRIVATE files are only visible to their owner; check --user or FSTORE_USER.",
	"duplicate_content":  "you already stored this exact content; list your files with: fstore ls",
	"duplicate_filename": "pick another name with --name, or rename the existing file with: fstore mv",
	"conflict":           "a concurrent request changed the same file; retry the command.",
	"resource_exhausted": "too many failed admin attempts from this address; wait a few minutes.",
	"unavailable":        "the server cannot reach its catalog or blob storage; check server logs.",
}

var unreachableHints = []string{
	"ensure an fstore server is running at FSTORE_API_URL.",
	"start local server manually with: fstore srv",
	"you can increase FSTORE_HTTP_TIMEOUT for slower environments.",
}

// formatCLIError renders err followed by any hints that apply to it.
func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{err.Error()}
	for _, hint := range hintsFor(err) {
		lines = append(lines, "hint: "+hint)
	}
	return uniqueLines(lines)
}

func hintsFor(err error) []string {
	var apiErr *api.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		var hints []string
		if apiErr.Code == "" {
			hints = append(hints, "verify FSTORE_API_URL points to an fstore server.")
		} else if hint, ok := codeHints[apiErr.Code]; ok {
			hints = append(hints, hint)
		}
		if apiErr.Status >= 500 {
			hints = append(hints, "server returned an internal error; check server logs for details.")
		}
		return hints
	case errors.Is(err, context.DeadlineExceeded):
		return []string{"request timed out; check server health or increase FSTORE_HTTP_TIMEOUT."}
	case errors.As(err, &netErr):
		return unreachableHints
	}
	return nil
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := lines[:0:0]
	for _, line := range lines {
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}
