package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
)

// HistoryWindow is the number of most recent turns replayed into a prompt.
const HistoryWindow = 20

var conversationTemplate = prompt.FromMessages(
	schema.FString,
	schema.SystemMessage("{system}"),
	schema.MessagesPlaceholder("history", true),
	schema.UserMessage("{query}"),
)

// BuildPrompt assembles the messages for one completion call: the role
// instruction as the only system message, the last HistoryWindow turns of
// history in their original order, and newUserText as the final user message.
// It has no side effects.
func BuildPrompt(ctx context.Context, history []chat.Turn, newUserText, roleInstruction string) ([]*schema.Message, error) {
	messages, err := conversationTemplate.Format(ctx, map[string]any{
		"system":  roleInstruction,
		"history": historyMessages(history),
		"query":   newUserText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}
	return messages, nil
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return []*schema.Message{}
	}

	startIdx := 0
	if len(turns) > HistoryWindow {
		startIdx = len(turns) - HistoryWindow
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}

	return history
}
