// Package openai implements the llm summarizers against an OpenAI-compatible
// chat completions endpoint.
//
// Example usage:
//
//	client := openai.NewClient(
//	    llm.StaticCredential(os.Getenv("OPENAI_API_KEY")),
//	    openai.WithModel("gpt-4o"),
//	    openai.WithTimeout(20*time.Second),
//	)
//
//	summary, err := client.Summarize(ctx, digest, 1)
//	if err != nil {
//	    // llm.ErrNoCredential or llm.ErrRequestFailed
//	}
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o"

	// DefaultTimeout bounds every request
	DefaultTimeout = 30 * time.Second
)

// Client implements llm.Summarizer, llm.PageSummarizer and
// llm.ActivitySummarizer.
type Client struct {
	client     openai.Client
	credential llm.CredentialSource
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
	logger     *logging.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithModel sets the model to use for completions.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout bounds each request. Exceeding it fails the call with
// llm.ErrRequestFailed.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the transport used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client that reads its API key from cred before every
// request.
//
// If cred is nil the OPENAI_API_KEY environment variable is consulted on each
// call. If no base URL option is given, OPENAI_BASE_URL is checked.
func NewClient(cred llm.CredentialSource, opts ...ClientOption) *Client {
	if cred == nil {
		cred = func() string { return os.Getenv("OPENAI_API_KEY") }
	}

	c := &Client{
		credential: cred,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		timeout:    DefaultTimeout,
		logger:     logging.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			c.baseURL = envBaseURL
		}
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(c.baseURL),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.client = openai.NewClient(reqOpts...)

	return c
}

// Summarize implements llm.Summarizer.
func (c *Client) Summarize(ctx context.Context, digest string, level int) (string, error) {
	prompt, err := llm.PromptForLevel(level)
	if err != nil {
		return "", err
	}

	text, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.SystemMessage()),
			openai.UserMessage(prompt.UserMessage(digest)),
		},
		MaxTokens: openai.Int(prompt.MaxTokens),
	})
	if errors.Is(err, llm.ErrMalformedResponse) {
		c.logger.Warnf("level %d summary response had no content", level)
		return llm.NoSummaryGenerated, nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// SummarizePage implements llm.PageSummarizer.
func (c *Client) SummarizePage(ctx context.Context, page types.PageRecord, density types.Density) (types.PageDigest, error) {
	text, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llm.PageSystemMessage),
			openai.UserMessage(llm.PagePrompt(page, density)),
		},
		MaxTokens: openai.Int(llm.PageMaxTokens),
	})
	if err != nil && !errors.Is(err, llm.ErrMalformedResponse) {
		return types.PageDigest{}, err
	}

	digest, ok := llm.ParsePageDigest(text)
	if !ok {
		c.logger.Debugf("page digest for %s did not follow BULLETS/ONELINE format", page.URL)
	}
	return digest, nil
}

// SummarizeActivity implements llm.ActivitySummarizer.
func (c *Client) SummarizeActivity(ctx context.Context, digest string) (string, error) {
	text, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llm.ActivitySystemMessage),
			openai.UserMessage(digest),
		},
		MaxTokens: openai.Int(llm.ActivityMaxTokens),
	})
	if errors.Is(err, llm.ErrMalformedResponse) {
		c.logger.Warnf("activity summary response had no content")
		return llm.NoSummaryGenerated, nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// complete issues a single bounded request and returns the first choice.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	apiKey := strings.TrimSpace(c.credential())
	if apiKey == "" {
		return "", llm.ErrNoCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %s", llm.ErrRequestFailed, apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %w", llm.ErrRequestFailed, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", llm.ErrMalformedResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrMalformedResponse
	}
	return content, nil
}

// GetModel returns the model name being used.
func (c *Client) GetModel() string {
	return c.model
}

// GetBaseURL returns the base URL being used.
func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// GetTimeout returns the per-request timeout.
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}
