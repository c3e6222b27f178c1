package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/config/file"
	geminiembed "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/studyrag/internal/adapters/driven/embedding/ollama"
	geminillm "github.com/custodia-labs/studyrag/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/studyrag/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Configuration lives in ~/.studyrag/config.toml. Any key can be overridden
with a STUDYRAG_ environment variable, using a double underscore between
section and key: STUDYRAG_RETRIEVAL__MIN_RELEVANCE=0.3.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Args:  cobra.NoArgs,
	// Must work when the existing file is broken.
	PersistentPreRunE: func(*cobra.Command, []string) error {
		logger.SetVerbose(verbose)
		return nil
	},
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after file, .env and environment overrides. API keys are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var (
	configForce       bool
	configInteractive bool
)

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVarP(&configInteractive, "interactive", "i", false, "prompt for providers and API keys")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return file.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}

	c := file.DefaultConfig()
	if configInteractive {
		reader := bufio.NewReader(cmd.InOrStdin())
		if err := promptProviders(cmd, reader, c); err != nil {
			return err
		}
	}

	if err := file.Write(path, c, configForce); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	cmd.Printf("Wrote %s\n", path)
	if !configInteractive {
		cmd.Println("Set OPENAI_API_KEY or GEMINI_API_KEY, or edit the file to add keys.")
	}
	return nil
}

func promptProviders(cmd *cobra.Command, reader *bufio.Reader, c *file.Config) error {
	providers := []domain.AIProvider{domain.AIProviderOpenAI, domain.AIProviderGemini, domain.AIProviderOllama}

	cmd.Println("Which provider should studyrag use?")
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("Choice [1]: ")
	provider := providers[parseChoice(readLine(reader), len(providers), 1)-1]

	c.Embedding.Provider = provider.String()
	c.LLM.Provider = provider.String()

	switch provider {
	case domain.AIProviderOllama:
		cmd.Printf("Ollama URL [%s]: ", ollamaembed.DefaultBaseURL)
		url := readLine(reader)
		if url == "" {
			url = ollamaembed.DefaultBaseURL
		}
		c.Embedding.BaseURL = url
		c.Embedding.Model = ollamaembed.DefaultModel
		c.Embedding.Dimensions = ollamaembed.DefaultDimensions
		c.LLM.BaseURL = url
		c.LLM.Model = ollamallm.DefaultLLMModel
		return nil
	case domain.AIProviderGemini:
		c.Embedding.Model = geminiembed.DefaultModel
		c.Embedding.Dimensions = geminiembed.DefaultDimensions
		c.LLM.Model = geminillm.DefaultModel
	}

	cmd.Print("API key (leave empty to use the environment): ")
	key := readSecret(cmd.InOrStdin(), reader)
	if key != "" {
		cmd.Printf("\nUsing key %s\n", maskAPIKey(key))
	} else {
		cmd.Println()
	}
	c.Embedding.APIKey = key
	c.LLM.APIKey = key
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	c := *cfg
	if c.Embedding.APIKey != "" {
		c.Embedding.APIKey = maskAPIKey(c.Embedding.APIKey)
	}
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = maskAPIKey(c.LLM.APIKey)
	}
	if c.Server.JWTSecret != "" {
		c.Server.JWTSecret = "****"
	}

	data, err := toml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > maxVal {
		return defaultVal
	}
	return n
}

// readSecret reads without echo when in is a terminal.
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
