package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API natively through google.golang.org/genai.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	retryConfig  RetryConfig
}

// NewGeminiProvider creates a client for apiKey. baseURL is optional.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		retryConfig:  DefaultRetryConfig(),
	}, nil
}

// WithRetry replaces the retry policy.
func (p *GeminiProvider) WithRetry(cfg RetryConfig) *GeminiProvider {
	p.retryConfig = cfg
	return p
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	system, contents := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}
	if v, ok := req.Options[OptMaxTokens].(int); ok && v > 0 {
		cfg.MaxOutputTokens = int32(v)
	}
	if v, ok := req.Options[OptTemperature].(float64); ok {
		t := float32(v)
		cfg.Temperature = &t
	}

	return RetryDo(ctx, p.retryConfig, func() (*ChatResponse, error) {
		resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return nil, wrapGeminiError(err)
		}
		return fromGeminiResponse(resp), nil
	})
}

// geminiError marks rate-limit and server failures as retryable.
type geminiError struct {
	err  error
	code int
}

func (e *geminiError) Error() string   { return "gemini: " + e.err.Error() }
func (e *geminiError) Unwrap() error   { return e.err }
func (e *geminiError) Retryable() bool { return e.code == http.StatusTooManyRequests || e.code >= 500 }

func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &geminiError{err: err, code: apiErr.Code}
	}
	return fmt.Errorf("gemini: %w", err)
}

// toGeminiContents splits out system messages and maps the rest onto
// user/model turns. Consecutive tool results fold into one user turn.
func toGeminiContents(msgs []Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	var contents []*genai.Content

	for _, m := range msgs {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, m.Content)
		case "assistant":
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				part := &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments}}
				if sig := tc.Metadata["thought_signature"]; sig != "" {
					if raw, err := base64.StdEncoding.DecodeString(sig); err == nil {
						part.ThoughtSignature = raw
					}
				}
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case "tool":
			part := genai.NewPartFromFunctionResponse(m.ToolName, map[string]any{"output": m.Content})
			part.FunctionResponse.ID = m.ToolCallID
			if n := len(contents); n > 0 && contents[n-1].Role == string(genai.RoleUser) && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	return system, contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) *ChatResponse {
	result := &ChatResponse{FinishReason: "stop"}
	if resp == nil || len(resp.Candidates) == 0 {
		return result
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		result.FinishReason = "length"
	}

	var text strings.Builder
	if cand.Content != nil {
		for i, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				call := ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				}
				if call.ID == "" {
					call.ID = fmt.Sprintf("call_%d", i)
				}
				if call.Arguments == nil {
					call.Arguments = map[string]any{}
				}
				if len(part.ThoughtSignature) > 0 {
					call.Metadata = map[string]string{
						"thought_signature": base64.StdEncoding.EncodeToString(part.ThoughtSignature),
					}
				}
				result.ToolCalls = append(result.ToolCalls, call)
			case part.Text != "" && !part.Thought:
				text.WriteString(part.Text)
			}
		}
	}
	result.Content = text.String()
	if len(result.ToolCalls) > 0 {
		result.FinishReason = "tool_calls"
	}

	if u := resp.UsageMetadata; u != nil {
		result.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return result
}

func toFunctionDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toGeminiSchema(t.Function.Parameters),
		})
	}
	return out
}

// toGeminiSchema converts a JSON-schema map into genai's typed schema.
// Keywords Gemini does not model are dropped.
func toGeminiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = geminiType(t)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	s.Required = stringList(m["required"])
	s.Enum = stringList(m["enum"])
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	return s
}

func geminiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
