// Package tagger classifies a finished conversation into topics, a
// dominant emotion and an intensity score with one text-generation call.
package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davidealbano/aria/internal/observability"
	"github.com/davidealbano/aria/internal/reliability"
	"github.com/davidealbano/aria/internal/reply"
	"github.com/davidealbano/aria/internal/textgen"
)

// TopicLabels is the closed topic set the backend may choose from.
var TopicLabels = []string{
	"relationship", "work", "health", "family", "personal_growth", "life_advice",
}

// Result is one session-level classification.
type Result struct {
	Tags           []string `json:"tags"`
	PrimaryEmotion string   `json:"primary_emotion"`
	Intensity      int      `json:"intensity"`
}

// fallbackResult is returned when the backend is unreachable so that
// session-end flows always complete.
func fallbackResult() Result {
	return Result{Tags: []string{"general"}, PrimaryEmotion: "neutral", Intensity: 5}
}

// Options tune the tagger.
type Options struct {
	// MaxTranscriptChars caps the text sent to the backend; longer
	// transcripts are truncated with an ellipsis marker.
	MaxTranscriptChars int
	// DedupeTags drops repeated tags while preserving first-seen order.
	// Off by default: downstream analytics currently see duplicates when
	// the model repeats a tag.
	DedupeTags bool
	// Timeout bounds the text-generation call.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTranscriptChars <= 0 {
		o.MaxTranscriptChars = 6000
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Tagger is stateless across calls: each AutoTag is an independent
// classification of the transcript it is handed.
type Tagger struct {
	gen     textgen.Client
	metrics *observability.Metrics
	log     *slog.Logger
	opts    Options
}

func New(gen textgen.Client, metrics *observability.Metrics, log *slog.Logger, opts Options) *Tagger {
	if log == nil {
		log = slog.Default()
	}
	return &Tagger{gen: gen, metrics: metrics, log: log, opts: opts.withDefaults()}
}

// AutoTag classifies the transcript. Malformed backend output degrades
// per field; only a network-level failure produces the fixed fallback.
// It never returns an error.
func (t *Tagger) AutoTag(ctx context.Context, sessionID, transcript string) Result {
	if len(transcript) > t.opts.MaxTranscriptChars {
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character and hands the backend invalid UTF-8.
		cut := t.opts.MaxTranscriptChars
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut] + "..."
	}

	callCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := t.gen.Complete(callCtx, t.buildPrompt(transcript))
	if t.metrics != nil {
		t.metrics.ObserveTextGenLatency(time.Since(start))
	}
	if err != nil {
		t.log.Warn("tagging backend unavailable, using fallback",
			"session_id", sessionID,
			"error", err,
		)
		if t.metrics != nil {
			t.metrics.TaggingRuns.WithLabelValues("fallback").Inc()
			t.metrics.TextGenErrors.WithLabelValues(reliability.Classify(err)).Inc()
		}
		return fallbackResult()
	}

	res := t.parse(text)
	t.log.Info("conversation tagged",
		"session_id", sessionID,
		"tags", strings.Join(res.Tags, ","),
		"emotion", res.PrimaryEmotion,
		"intensity", res.Intensity,
	)
	if t.metrics != nil {
		t.metrics.TaggingRuns.WithLabelValues("ok").Inc()
	}
	return res
}

func (t *Tagger) buildPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString("Classify the following companion chat conversation. Reply with exactly three lines in this format:\n\n")
	sb.WriteString(fmt.Sprintf("TAGS: [<zero or more of: %s>]\n", strings.Join(TopicLabels, ", ")))
	sb.WriteString(fmt.Sprintf("EMOTION: <exactly one of: %s>\n", strings.Join(reply.EmotionLabels, ", ")))
	sb.WriteString("INTENSITY: <integer 1-10; 1-3 casual chat, 4-6 regular conversation, 7-8 important or emotional, 9-10 critical or urgent>\n\n")
	sb.WriteString("Conversation:\n")
	sb.WriteString(transcript)
	return sb.String()
}

func (t *Tagger) parse(text string) Result {
	tags, ok := reply.List(text, "TAGS")
	if !ok {
		tags = []string{}
	}
	if t.opts.DedupeTags {
		tags = dedupe(tags)
	}

	emotion, ok := reply.Field(text, "EMOTION")
	if !ok {
		emotion = "neutral"
	}

	intensity, ok := reply.Int(text, "INTENSITY")
	if !ok {
		intensity = 5
	}

	return Result{
		Tags:           tags,
		PrimaryEmotion: strings.ToLower(emotion),
		Intensity:      reply.Clamp(intensity, 1, 10),
	}
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
