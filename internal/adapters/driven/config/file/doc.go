// Package file provides file-based configuration for studyrag.
//
// Adapters:
//   - Config: koanf-loaded settings from defaults, config.toml, .env and STUDYRAG_ variables
//   - PromptStore: user-editable answer prompts with embedded defaults
package file
