package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolOutput struct {
	ToolCallID string
	Output     string
}

type Run struct {
	ID        string
	Status    openai.RunStatus
	ToolCalls []ToolCall
}

// Backend is the slice of the hosted assistant API the relay drives.
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	// LatestRun returns nil when the thread has no runs yet.
	LatestRun(ctx context.Context, threadID string) (*Run, error)
	AddUserMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	LatestAssistantText(ctx context.Context, threadID string) (string, error)
}

type OpenAIBackend struct {
	client      *openai.Client
	assistantID string
}

func NewOpenAIBackend(client *openai.Client, assistantID string) *OpenAIBackend {
	return &OpenAIBackend{client: client, assistantID: assistantID}
}

func (b *OpenAIBackend) CreateThread(ctx context.Context) (string, error) {
	thread, err := b.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (b *OpenAIBackend) LatestRun(ctx context.Context, threadID string) (*Run, error) {
	limit := 1
	order := "desc"
	list, err := b.client.ListRuns(ctx, threadID, openai.Pagination{Limit: &limit, Order: &order})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(list.Runs) == 0 {
		return nil, nil
	}
	run := convertRun(list.Runs[0])
	return &run, nil
}

func (b *OpenAIBackend) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := b.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (b *OpenAIBackend) CreateRun(ctx context.Context, threadID string) (Run, error) {
	run, err := b.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: b.assistantID})
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return convertRun(run), nil
}

func (b *OpenAIBackend) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := b.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("retrieve run: %w", err)
	}
	return convertRun(run), nil
}

func (b *OpenAIBackend) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	req := openai.SubmitToolOutputsRequest{
		ToolOutputs: make([]openai.ToolOutput, 0, len(outputs)),
	}
	for _, o := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{
			ToolCallID: o.ToolCallID,
			Output:     o.Output,
		})
	}
	run, err := b.client.SubmitToolOutputs(ctx, threadID, runID, req)
	if err != nil {
		return Run{}, fmt.Errorf("submit tool outputs: %w", err)
	}
	return convertRun(run), nil
}

func (b *OpenAIBackend) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := b.client.CancelRun(ctx, threadID, runID); err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	return nil
}

func (b *OpenAIBackend) LatestAssistantText(ctx context.Context, threadID string) (string, error) {
	limit := 10
	order := "desc"
	list, err := b.client.ListMessage(ctx, threadID, &limit, &order, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		parts := make([]string, 0, len(msg.Content))
		for _, block := range msg.Content {
			if block.Type == "text" && block.Text != nil {
				parts = append(parts, block.Text.Value)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	}
	return "", nil
}

func convertRun(run openai.Run) Run {
	out := Run{ID: run.ID, Status: run.Status}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return out
}
