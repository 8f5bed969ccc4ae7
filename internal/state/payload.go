// Package state holds the pure decision layer for the session lifecycle:
// payload classification and the startup/runtime view-state machine.
// Nothing here touches storage or blocks.
package state

import (
	"os"
	"strings"

	"github.com/lin/qichat/internal/domain"
)

// ParseCommandArgs classifies process launch arguments into a payload.
// args[0] is the program name and is skipped. The first non-blank argument
// wins: an existing filesystem path is a file payload, an http(s) URL is a
// url payload, anything else is raw text. Later arguments are ignored.
// Returns nil when no argument qualifies.
func ParseCommandArgs(args []string) *domain.Payload {
	if len(args) <= 1 {
		return nil
	}

	for _, arg := range args[1:] {
		if pathExists(arg) {
			p := domain.NewPayload(domain.PayloadFile, arg)
			return &p
		}
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			p := domain.NewPayload(domain.PayloadURL, arg)
			return &p
		}
		if strings.TrimSpace(arg) != "" {
			p := domain.NewPayload(domain.PayloadText, arg)
			return &p
		}
	}

	return nil
}

// ParseFileDrop classifies a set of dropped paths. Paths that no longer
// exist are filtered out; the first surviving path becomes the payload
// source and the full filtered list rides along in the meta map so
// downstream code can still reach every dropped file.
// Returns nil when nothing valid was dropped.
func ParseFileDrop(paths []string) *domain.Payload {
	if len(paths) == 0 {
		return nil
	}

	var valid []string
	for _, p := range paths {
		if pathExists(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	payload := domain.NewPayload(domain.PayloadFile, valid[0])
	payload.Meta["all_files"] = valid
	return &payload
}

// NewTextPayload wraps raw text. Always succeeds.
func NewTextPayload(text string) domain.Payload {
	return domain.NewPayload(domain.PayloadText, text)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
