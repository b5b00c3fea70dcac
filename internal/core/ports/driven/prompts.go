package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return a built-in default
	// or an error when none exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptGroundedSystem is the system instruction for grounded answering.
	// The template expects a %s placeholder for the fixed refusal phrase.
	PromptGroundedSystem = "grounded_system"

	// PromptGroundedUser wraps the context blocks and question.
	// The template expects %s (context) and %s (question) placeholders.
	PromptGroundedUser = "grounded_user"
)
