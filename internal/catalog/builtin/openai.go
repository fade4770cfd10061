package builtin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/pkg/workflow"
)

// openAICompletionExecutable sends its "prompt" input to the OpenAI chat
// completions API and publishes the first choice's content on "output".
// Grounded on mbflow's OpenAICompletionExecutor. The API key is the node's
// "apiKey" input when that is a non-empty string, otherwise the default
// given to NewOpenAICompletionFactory; a zerolog debug line is written
// before the call.
type openAICompletionExecutable struct {
	apiKey string
	model  string
}

func (o *openAICompletionExecutable) Execute(ctx context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	promptVal, ok := nc.Inputs["prompt"]
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: "openai-completion: missing required input \"prompt\""}, nil
	}
	promptRaw, _ := promptVal.Scalar()
	prompt, ok := promptRaw.(string)
	if !ok || prompt == "" {
		return catalog.Result{Status: catalog.ExecutionError, Error: "openai-completion: \"prompt\" must be a non-empty string"}, nil
	}

	apiKey := o.apiKey
	if v, ok := nc.Inputs["apiKey"]; ok {
		if s, ok := v.Scalar(); ok {
			if str, ok := s.(string); ok && str != "" {
				apiKey = str
			}
		}
	}
	if apiKey == "" {
		return catalog.Result{Status: catalog.ExecutionError, Error: "openai-completion: no API key resolved from node config or defaults"}, nil
	}

	model := o.model
	if model == "" {
		model = "gpt-4o"
	}

	log.Debug().Str("node_id", nc.NodeID).Str("model", model).Msg("calling openai chat completion")

	client := openai.NewClient(apiKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return catalog.Result{}, fmt.Errorf("openai-completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return catalog.Result{Status: catalog.ExecutionError, Error: "openai-completion: API returned no choices"}, nil
	}

	return catalog.Result{
		Status:  catalog.ExecutionCompleted,
		Outputs: map[string]workflow.Value{"output": workflow.NewScalar(resp.Choices[0].Message.Content)},
		Usage:   1,
	}, nil
}

// NewOpenAICompletionFactory builds the "openai-completion" node type.
// defaultAPIKey is used when neither the node nor the invocation's
// transformed inputs supply one.
func NewOpenAICompletionFactory(defaultAPIKey string) catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		model := ""
		if port, ok := n.InputPort("model"); ok {
			if s, ok := port.Value.(string); ok {
				model = s
			}
		}
		return &openAICompletionExecutable{apiKey: defaultAPIKey, model: model}, nil
	}
}

func OpenAICompletionDescriptor() *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID: "openai-completion",
		Inputs: []*workflow.InputPort{
			{Name: "prompt", Type: "string", Required: true},
			{Name: "apiKey", Type: "string", Hidden: true},
			{Name: "model", Type: "string"},
		},
		Outputs:      []*workflow.OutputPort{{Name: "output", Type: "string"}},
		DefaultUsage: 5,
		Subscription: true,
	}
}
