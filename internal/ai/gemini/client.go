package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"
	"github.com/duybaohuynhtan/CareerAgent/internal/util"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider            = "gemini"
	defaultMaxLogLength = 200
)

// modelsAPI is the subset of *genai.Models the client uses.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements ai.Backend on top of the Gemini API.
type Client struct {
	models    modelsAPI
	logger    *zap.Logger
	maxLogLen int
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, maxLogLength int, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, maxLogLength, log), nil
}

func newClient(models modelsAPI, maxLogLength int, log *zap.Logger) *Client {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Client{
		models:    models,
		logger:    logger.WithFields(log, zap.String(logger.FieldProvider, Provider)),
		maxLogLen: maxLogLength,
	}
}

func (c *Client) Provider() string { return Provider }

// Generate sends a single prompt and returns the text of the answer.
func (c *Client) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: prompt}},
	}}

	log := c.logger.With(zap.String(logger.FieldModel, model))
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", util.RuneLen(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, c.maxLogLen)),
	)

	resp, err := c.models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(system),
	})
	if err != nil {
		return "", wrapAPIError(err)
	}

	text, _ := collect(resp)
	if text == "" {
		return "", fmt.Errorf("%w: gemini api returned empty response", ai.ErrBackendUnavailable)
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", util.RuneLen(text)),
		zap.String("response_preview", util.TruncateForLog(text, c.maxLogLen)),
	)

	return text, nil
}

// Complete runs one tool-calling step. A function call in the answer wins over
// any text that accompanies it.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (ai.Reply, error) {
	contents := toContents(req.Messages)
	if len(contents) == 0 {
		return nil, errors.New("completion request has no messages")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req.System),
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	log := c.logger.With(zap.String(logger.FieldModel, req.Model))
	log.Debug("gemini completion request",
		zap.Int("messages", len(contents)),
		zap.Int("tools", len(req.Tools)),
	)

	resp, err := c.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	text, calls := collect(resp)
	if len(calls) > 0 {
		if len(calls) > 1 {
			skipped := make([]string, 0, len(calls)-1)
			for _, extra := range calls[1:] {
				skipped = append(skipped, extra.Name)
			}
			log.Warn("gemini returned parallel function calls, running only the first",
				zap.Int("calls", len(calls)),
				zap.String(logger.FieldTool, calls[0].Name),
				zap.Strings("skipped_tools", skipped),
			)
		}
		call := calls[0]
		log.Debug("gemini requested function call", zap.String(logger.FieldTool, call.Name))
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		return ai.ToolCallRequest{ID: call.ID, Name: call.Name, Arguments: args}, nil
	}

	if text == "" {
		return nil, fmt.Errorf("%w: gemini api returned empty response", ai.ErrBackendUnavailable)
	}

	log.Debug("gemini completion response",
		zap.Int("response_length", util.RuneLen(text)),
		zap.String("response_preview", util.TruncateForLog(text, c.maxLogLen)),
	)

	return ai.TextReply{Text: text}, nil
}

func collect(resp *genai.GenerateContentResponse) (string, []*genai.FunctionCall) {
	if resp == nil {
		return "", nil
	}

	var builder strings.Builder
	var calls []*genai.FunctionCall
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				calls = append(calls, part.FunctionCall)
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" || part.Thought {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// Only the first usable candidate is considered.
		if builder.Len() > 0 || len(calls) > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String()), calls
}

func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini api %d %s: %s", ai.ErrBackendUnavailable, apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return fmt.Errorf("%w: generate content: %w", ai.ErrBackendUnavailable, err)
}
