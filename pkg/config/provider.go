package config

import (
	"os"

	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/llm/openai"
	"github.com/entrhq/pagetrail/pkg/logging"
)

// LLMFlags are the command-line overrides for the summarizer.
type LLMFlags struct {
	Model   string
	BaseURL string
	APIKey  string
}

// Credential resolves the API key on every call: CLI flag, then the
// OPENAI_API_KEY env var, then the config file. An empty result means no
// credential is configured.
func Credential(cliAPIKey string) llm.CredentialSource {
	return func() string {
		if cliAPIKey != "" {
			return cliAPIKey
		}
		if env := os.Getenv("OPENAI_API_KEY"); env != "" {
			return env
		}
		if section := GetLLM(); section != nil {
			return section.GetAPIKey()
		}
		return ""
	}
}

// BuildSummarizer creates the OpenAI-compatible client with precedence
// CLI flags > Environment variables > Config file > Defaults. A missing API key
// is not an error: requests report llm.ErrNoCredential until one is set.
func BuildSummarizer(flags LLMFlags, logger *logging.Logger) *openai.Client {
	model := flags.Model
	baseURL := flags.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	var opts []openai.ClientOption
	if section := GetLLM(); section != nil {
		if model == "" {
			model = section.GetModel()
		}
		if baseURL == "" {
			baseURL = section.GetBaseURL()
		}
		if timeout := section.GetTimeout(); timeout > 0 {
			opts = append(opts, openai.WithTimeout(timeout))
		}
	}

	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if logger != nil {
		opts = append(opts, openai.WithLogger(logger))
	}

	return openai.NewClient(Credential(flags.APIKey), opts...)
}
