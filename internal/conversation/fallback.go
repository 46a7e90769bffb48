package conversation

import "strings"

// topic is the closed set of fallback categories. Keeping dispatch on
// a tagged variant (rather than ad hoc string scanning at each call
// site) makes the fallback set exhaustive and testable.
type topic int

const (
	topicGeneric topic = iota
	topicReview
	topicTestGen
	topicRefactor
	topicAgentDesign
)

// classify picks the fallback topic for a user message by keyword
// match. First match in declaration order wins; no match is generic.
func classify(userMessage string) topic {
	lower := strings.ToLower(userMessage)

	keywords := []struct {
		t     topic
		words []string
	}{
		{topicReview, []string{"review", "security", "vulnerab", "bug", "lint"}},
		{topicTestGen, []string{"test", "coverage", "assert", "mock"}},
		{topicRefactor, []string{"refactor", "restructure", "rename", "extract", "decouple"}},
		{topicAgentDesign, []string{"agent", "prompt", "tool call", "orchestrat"}},
	}
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.t
			}
		}
	}
	return topicGeneric
}

// fallbackReply returns the deterministic reply used when the
// generation collaborator fails. Every variant asks follow-up
// questions and none contains a completion marker, so a degraded
// session keeps progressing until the turn bound.
func fallbackReply(t topic) string {
	switch t {
	case topicReview:
		return "I couldn't reach the assistant service, so a few standard questions instead. " +
			"Which areas of the code worry you most? " +
			"Should findings below a certain severity be ignored? " +
			"Are there files or directories the review should skip?"
	case topicTestGen:
		return "The assistant service isn't responding, so some standard questions. " +
			"Which behaviors are most important to lock down with tests? " +
			"Do you prefer table-driven tests or another style? " +
			"Is there existing test setup the new tests should reuse?"
	case topicRefactor:
		return "The assistant service is unavailable right now, so a few standard questions. " +
			"What is the single most important outcome of this refactor? " +
			"Which interfaces or behaviors must stay exactly as they are? " +
			"How much churn is acceptable in one change?"
	case topicAgentDesign:
		return "I can't reach the assistant service, so some standard questions. " +
			"What decisions should the agent make on its own versus escalate? " +
			"Which tools or data sources does it need? " +
			"What is the worst failure it must never cause?"
	default:
		return "The assistant service is unavailable, but we can still narrow things down. " +
			"What does a successful result look like for you? " +
			"Is any part of the target area off-limits? " +
			"Are there constraints (time, style, compatibility) I should know about?"
	}
}

// fallbackFor picks the canned reply for the latest user message.
func fallbackFor(userMessage string) string {
	return fallbackReply(classify(userMessage))
}
