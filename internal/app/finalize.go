// Package app glues the memory, tagging and persistence components into
// the session-end flow shared by explicit ends and inactivity expiry.
package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/davidealbano/aria/internal/memory"
	"github.com/davidealbano/aria/internal/policy"
	"github.com/davidealbano/aria/internal/tagger"
	"github.com/davidealbano/aria/internal/tagstore"
)

// Finalizer runs the session-end flow: render the transcript, redact PII,
// tag the conversation, persist the result and clear the buffer. Every
// step degrades rather than fails; a session always finishes ending.
type Finalizer struct {
	Memory  *memory.Manager
	Tagger  *tagger.Tagger
	Gateway tagstore.Gateway
	Log     *slog.Logger
	Timeout time.Duration
}

// Finalize tags and persists the session, then clears its buffer. It
// returns the classification used (the fallback when tagging degraded).
func (f *Finalizer) Finalize(ctx context.Context, userID, sessionID string) tagger.Result {
	log := f.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transcript, err := f.Memory.Transcript(ctx, sessionID)
	if err != nil {
		log.Warn("no transcript for session end, skipping tagging",
			"session_id", sessionID,
			"error", err,
		)
		return tagger.Result{}
	}

	redacted, changed := policy.RedactPII(transcript)
	if changed {
		log.Debug("transcript redacted before tagging", "session_id", sessionID)
	}

	result := f.Tagger.AutoTag(ctx, sessionID, redacted)
	if len(result.Tags) > 0 || strings.TrimSpace(transcript) != "" {
		if err := f.Gateway.SaveTags(ctx, userID, sessionID, result.Tags, result.PrimaryEmotion, result.Intensity); err != nil {
			log.Warn("failed to persist conversation tags",
				"session_id", sessionID,
				"error", err,
			)
		}
	}

	f.Memory.Clear(ctx, sessionID)
	return result
}
