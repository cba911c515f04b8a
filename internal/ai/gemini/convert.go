package gemini

import (
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"

	"google.golang.org/genai"
)

func systemInstruction(system string) *genai.Content {
	system = strings.TrimSpace(system)
	if system == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: system}}}
}

// toContents maps the neutral message list onto Gemini roles: assistant turns
// become "model", tool results are sent back as user function responses.
func toContents(messages []ai.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleUser:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case ai.RoleAssistant:
			if msg.Call != nil {
				contents = append(contents, &genai.Content{
					Role: string(genai.RoleModel),
					Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
						ID:   msg.Call.ID,
						Name: msg.Call.Name,
						Args: msg.Call.Arguments,
					}}},
				})
				continue
			}
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  string(genai.RoleModel),
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case ai.RoleTool:
			if msg.Result == nil {
				continue
			}
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.Result.CallID,
					Name:     msg.Result.Name,
					Response: msg.Result.Output,
				}}},
			})
		}
	}
	return contents
}

func toFunctionDeclarations(tools []ai.ToolDeclaration) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		props := make(map[string]*genai.Schema, len(tool.Parameters))
		for name, p := range tool.Parameters {
			props[name] = &genai.Schema{
				Type:        schemaType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
				Minimum:     p.Minimum,
				Maximum:     p.Maximum,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   tool.Required,
			},
		})
	}
	return decls
}

func schemaType(t ai.ParamType) genai.Type {
	switch t {
	case ai.ParamInteger:
		return genai.TypeInteger
	default:
		return genai.TypeString
	}
}
