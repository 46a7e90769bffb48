// Package conversation implements the turn-bounded refinement dialogue.
//
// A session walks awaiting-input → generating-response → (awaiting-input
// | complete). All transitions are caller-driven; the only operation
// that may suspend is the generation call, and its failures are
// absorbed by deterministic fallback replies.
package conversation

import (
	"fmt"
	"strings"
)

// FormType selects the conversation shape: initial question, system
// instruction block, and fallback category.
type FormType string

const (
	FormReview      FormType = "review"
	FormTestGen     FormType = "test-gen"
	FormRefactor    FormType = "refactor"
	FormAgentDesign FormType = "agent-design"
	FormGeneric     FormType = "generic"
)

// FormConfig describes one conversation form.
type FormConfig struct {
	// InitialQuestion opens the dialogue.
	InitialQuestion string
	// Role, Goal, Instructions, Constraints, and OutputFormat compose
	// the system instruction block.
	Role         string
	Goal         string
	Instructions []string
	Constraints  []string
	OutputFormat string
	// MaxTurns bounds the dialogue; reaching it forces completion.
	MaxTurns int
}

// DefaultMaxTurns bounds forms that don't configure their own.
const DefaultMaxTurns = 10

// defaultForms returns the shipped form catalog.
func defaultForms() map[FormType]FormConfig {
	shared := []string{
		"Ask one focused clarifying question at a time",
		"Build on the user's previous answers; never re-ask what was answered",
		"When you have enough detail, present the final plan under a 'Plan:' heading",
	}

	return map[FormType]FormConfig{
		FormReview: {
			InitialQuestion: "What should this review focus on — correctness, security, performance, or style? Any areas to skip?",
			Role:            "You are a senior engineer scoping a code review.",
			Goal:            "Pin down the review's focus, severity bar, and exclusions before it runs.",
			Instructions:    shared,
			Constraints:     []string{"Do not review any code yourself", "Keep each question under two sentences"},
			OutputFormat:    "Finish with a 'Plan:' section listing focus areas, severity threshold, and skips.",
			MaxTurns:        DefaultMaxTurns,
		},
		FormTestGen: {
			InitialQuestion: "What should the generated tests cover first, and is there a preferred style (table-driven, BDD, property-based)?",
			Role:            "You are a test engineer scoping test generation.",
			Goal:            "Establish coverage targets, style, and fixtures before generating tests.",
			Instructions:    shared,
			Constraints:     []string{"Do not write tests yourself", "Prefer concrete examples over abstract coverage talk"},
			OutputFormat:    "Finish with a 'Plan:' section listing targets, style, and fixtures.",
			MaxTurns:        DefaultMaxTurns,
		},
		FormRefactor: {
			InitialQuestion: "What is the goal of this refactor — readability, performance, testability, or untangling a dependency? What must not change?",
			Role:            "You are an architect scoping a refactoring plan.",
			Goal:            "Capture the refactor's goal, hard constraints, and acceptable risk.",
			Instructions:    shared,
			Constraints:     []string{"Do not propose code changes yet", "Surface risks the user may not have considered"},
			OutputFormat:    "Finish with a 'Plan:' section listing goal, constraints, and risk tolerance.",
			MaxTurns:        DefaultMaxTurns,
		},
		FormAgentDesign: {
			InitialQuestion: "What should this agent accomplish, and what tools or data does it have access to?",
			Role:            "You are an AI systems designer scoping an agent configuration.",
			Goal:            "Define the agent's objective, tool surface, and guardrails.",
			Instructions:    shared,
			Constraints:     []string{"Stay at the design level; no implementation detail"},
			OutputFormat:    "Finish with a 'Configuration:' section for the agent.",
			MaxTurns:        DefaultMaxTurns,
		},
		FormGeneric: {
			InitialQuestion: "Before this runs: what outcome are you hoping for, and is there anything it should avoid?",
			Role:            "You are an assistant clarifying a developer-tooling request.",
			Goal:            "Resolve the main ambiguities in the request before execution.",
			Instructions:    shared,
			MaxTurns:        DefaultMaxTurns,
		},
	}
}

// systemPrompt renders the form's instruction block in the fixed
// role/goal/instructions/constraints/output order.
func systemPrompt(f FormConfig) string {
	var sb strings.Builder
	sb.WriteString(f.Role)
	sb.WriteString("\n\nGoal: ")
	sb.WriteString(f.Goal)

	if len(f.Instructions) > 0 {
		sb.WriteString("\n\nInstructions:\n")
		for i, inst := range f.Instructions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, inst)
		}
	}
	if len(f.Constraints) > 0 {
		sb.WriteString("\nConstraints:\n")
		for _, c := range f.Constraints {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	if f.OutputFormat != "" {
		sb.WriteString("\nOutput format: ")
		sb.WriteString(f.OutputFormat)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormForWorkflow maps a workflow name onto the closest conversation
// form. Unknown workflows get the generic form.
func FormForWorkflow(workflowName string) FormType {
	switch workflowName {
	case "code-review", "pr-review", "security-audit", "perf-audit", "bug-predict":
		return FormReview
	case "test-gen":
		return FormTestGen
	case "refactor-plan":
		return FormRefactor
	default:
		return FormGeneric
	}
}
