package driving

import "github.com/custodia-labs/regula/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetAnswerMode updates the default answer mode.
	SetAnswerMode(mode domain.AnswerMode) error

	// SetProvider adds or replaces a provider definition.
	SetProvider(p domain.ProviderSettings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
