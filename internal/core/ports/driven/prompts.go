package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswerSystem is the system prompt for grounded answers.
	// The template expects %s for the no-answer fallback phrase.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser frames the excerpts and question.
	// The template expects %s (document title), %s (excerpts) and %s (question).
	PromptAnswerUser = "answer_user"
)
