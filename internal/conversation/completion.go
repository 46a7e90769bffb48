package conversation

import (
	"regexp"
	"strings"
)

// Result is the structured output extracted from a completed session.
type Result struct {
	// Summary is the full text of the final assistant reply.
	Summary string `json:"summary"`
	// Structured is the body of the first fenced block in the reply,
	// or the full text when no block exists.
	Structured string `json:"structured"`
}

// signOffPhrases mark an assistant reply as final even without a
// structured section.
var signOffPhrases = []string{
	"let me know",
	"good luck",
	"you're all set",
	"happy to help further",
}

// headingMarkers mark a reply as carrying the final structured answer.
var headingMarkers = []string{
	"plan:",
	"configuration:",
}

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\n(.*?)```")

// isComplete reports whether an assistant reply should end the
// conversation: a labeled heading, a fenced block, or a sign-off.
func isComplete(assistantReply string) bool {
	lower := strings.ToLower(assistantReply)

	for _, h := range headingMarkers {
		if strings.Contains(lower, h) {
			return true
		}
	}
	if strings.Contains(assistantReply, "```") {
		return true
	}
	for _, p := range signOffPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// extractResult pulls the structured result out of the final reply.
func extractResult(assistantReply string) *Result {
	r := &Result{Summary: assistantReply, Structured: assistantReply}
	if m := fencedBlock.FindStringSubmatch(assistantReply); m != nil {
		r.Structured = strings.TrimSpace(m[1])
	}
	return r
}
