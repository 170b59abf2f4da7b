package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	appcfg "github.com/mx-space/wiki/internal/config"
	"github.com/mx-space/wiki/internal/pkg/aistream"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"google.golang.org/genai"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	maxOutputTokens       = 4096
	errorBodyLimit        = 512
)

var (
	ErrNoAPIKey      = errors.New("AI provider api key is empty")
	ErrEmptyResponse = errors.New("Réponse vide")
)

// Turn is one message of a chat history. Role is "user" or "model".
type Turn struct {
	Role string `json:"role" binding:"required,oneof=user model"`
	Text string `json:"text" binding:"required"`
}

// Provider is a generative-text backend.
type Provider interface {
	Name() string
	// Generate returns the complete answer to a single prompt.
	Generate(ctx context.Context, system, prompt string) (string, error)
	// Stream answers the last turn of history and reports every new
	// fragment through onUpdate. It never returns an error directly: the
	// outcome is carried by the result state.
	Stream(ctx context.Context, system string, history []Turn, onUpdate func(aistream.Update)) aistream.Result
}

// NewProvider builds the provider selected by cfg.
func NewProvider(cfg appcfg.AIConfig, httpClient *http.Client) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	switch cfg.Provider {
	case appcfg.ProviderOpenAI:
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(cfg.APIKey),
			openaioption.WithMaxRetries(0),
		}
		if base := normalizeOpenAIBaseURL(cfg.Endpoint); base != "" {
			opts = append(opts, openaioption.WithBaseURL(base))
		}
		client := openaiclient.NewClient(opts...)
		return &jetProvider{
			name:   appcfg.ProviderOpenAI,
			model:  jetopenai.NewLanguageModel(cfg.Model, jetopenai.WithClient(client)),
			stream: true,
		}, nil
	case appcfg.ProviderAnthropic:
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(cfg.APIKey),
			anthropicoption.WithMaxRetries(0),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.Endpoint))
		}
		client := anthropicclient.NewClient(opts...)
		return &jetProvider{
			name:  appcfg.ProviderAnthropic,
			model: jetanthropic.NewLanguageModel(cfg.Model, jetanthropic.WithClient(client)),
		}, nil
	default:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultGeminiEndpoint
		}
		return &geminiProvider{
			apiKey:   cfg.APIKey,
			model:    cfg.Model,
			endpoint: endpoint,
			http:     httpClient,
		}, nil
	}
}

// geminiProvider uses the genai SDK for single-shot calls and reads
// streamGenerateContent directly so that the body goes through the
// incremental parser chunk by chunk.
type geminiProvider struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func (p *geminiProvider) Name() string { return appcfg.ProviderGemini }

func (p *geminiProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.http,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.endpoint + "/"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	var config *genai.GenerateContentConfig
	if strings.TrimSpace(system) != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := client.Models.GenerateContent(ctx, p.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

func (p *geminiProvider) streamURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s",
		p.endpoint, neturl.PathEscape(p.model), neturl.QueryEscape(p.apiKey))
}

// Stream sends the system prompt as the first user turn, followed by the
// history, the way the chat has always framed the article.
func (p *geminiProvider) Stream(ctx context.Context, system string, history []Turn, onUpdate func(aistream.Update)) aistream.Result {
	stream := aistream.NewStream()

	contents := make([]geminiContent, 0, len(history)+1)
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: system}}})
	for _, turn := range history {
		contents = append(contents, geminiContent{Role: turn.Role, Parts: []geminiPart{{Text: turn.Text}}})
	}
	body, err := json.Marshal(map[string]interface{}{"contents": contents})
	if err != nil {
		return stream.Fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.streamURL(), bytes.NewReader(body))
	if err != nil {
		return stream.Fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return stream.Consume(ctx, nil, onUpdate)
		}
		return stream.Fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return stream.Fail(fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	return stream.Run(ctx, resp.Body, onUpdate)
}

// jetProvider covers OpenAI and Anthropic through jetify. Anthropic does
// not stream; its answer arrives as a single delta.
type jetProvider struct {
	name   string
	model  jetapi.LanguageModel
	stream bool
}

func (p *jetProvider) Name() string { return p.name }

func (p *jetProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(system, prompt),
		jetai.WithModel(p.model),
		jetai.WithMaxOutputTokens(maxOutputTokens),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (p *jetProvider) Stream(ctx context.Context, system string, history []Turn, onUpdate func(aistream.Update)) aistream.Result {
	stream := aistream.NewStream()
	deltas := make(chan aistream.Delta)
	prompt := transcript(history)

	go func() {
		defer close(deltas)
		send := func(d aistream.Delta) bool {
			select {
			case deltas <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !p.stream {
			text, err := p.Generate(ctx, system, prompt)
			send(aistream.Delta{Text: text, Err: err})
			return
		}

		resp, err := jetai.StreamText(
			ctx,
			buildPromptMessages(system, prompt),
			jetai.WithModel(p.model),
			jetai.WithMaxOutputTokens(maxOutputTokens),
		)
		if err != nil {
			send(aistream.Delta{Err: err})
			return
		}
		for event := range resp.Stream {
			switch evt := event.(type) {
			case *jetapi.TextDeltaEvent:
				if evt.TextDelta == "" {
					continue
				}
				if !send(aistream.Delta{Text: evt.TextDelta}) {
					return
				}
			case *jetapi.ErrorEvent:
				err := evt.Err
				if err == nil {
					err = errors.New("AI stream returned an unknown error")
				}
				send(aistream.Delta{Err: fmt.Errorf("%v", err)})
				return
			}
		}
	}()

	return stream.Consume(ctx, deltas, onUpdate)
}

// transcript folds a chat history into a single prompt. The last user turn
// is the question being asked.
func transcript(history []Turn) string {
	if len(history) == 1 {
		return history[0].Text
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if turn.Role == RoleModel {
			b.WriteString("Assistant : ")
		} else {
			b.WriteString("Utilisateur : ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return parsed.String()
}
