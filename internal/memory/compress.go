package memory

import (
	"fmt"
	"strings"

	"github.com/davidealbano/aria/internal/reply"
)

const (
	defaultTopic   = "general"
	defaultEmotion = "neutral"
)

// renderWindow formats the most recent n turns as "ROLE: content" lines in
// chronological order. The window deliberately overlaps turns that earlier
// cycles already summarized so the summary boundary keeps local context.
func renderWindow(turns []Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(strings.ToUpper(string(t.Role)))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildCompressPrompt asks for three labeled fields in a fixed format the
// reply parser can pick apart line by line.
func buildCompressPrompt(window string) string {
	var sb strings.Builder
	sb.WriteString("You maintain the working memory of an ongoing companion chat. ")
	sb.WriteString("Read the recent conversation below and reply with exactly three lines in this format:\n\n")
	sb.WriteString("TOPIC: <one short phrase naming the current topic>\n")
	sb.WriteString(fmt.Sprintf("EMOTION: <exactly one of: %s>\n", strings.Join(reply.EmotionLabels, ", ")))
	sb.WriteString("SUMMARY: <2-3 sentences summarizing what happened>\n\n")
	sb.WriteString("Conversation:\n")
	sb.WriteString(window)
	return sb.String()
}

// parseCompressReply extracts the three fields independently, each with a
// fallback default. It reports failure only when no field matched at all;
// in that case nothing should be appended.
func parseCompressReply(text string) (RollingSummary, bool) {
	topic, okTopic := reply.Field(text, "TOPIC")
	emotion, okEmotion := reply.Field(text, "EMOTION")
	summary, okSummary := reply.Field(text, "SUMMARY")

	if !okTopic && !okEmotion && !okSummary {
		return RollingSummary{}, false
	}
	if !okTopic {
		topic = defaultTopic
	}
	if !okEmotion {
		emotion = defaultEmotion
	}
	return RollingSummary{Topic: topic, Emotion: strings.ToLower(emotion), Summary: summary}, true
}
