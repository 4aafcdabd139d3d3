package ai

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_completer.go -package=mocks github.com/zhouzirui/kids-tutor/backend/internal/service/ai Completer

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// GenerationRequest is the payload of one completion call.
type GenerationRequest struct {
	Messages    []*schema.Message
	Temperature float32
	// Model overrides the client default when set.
	Model string
}

// Validate checks that the request carries exactly one system message and
// that it comes first.
func (r GenerationRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	for i, msg := range r.Messages {
		if msg == nil {
			return fmt.Errorf("%w: message %d is nil", ErrInvalidRequest, i)
		}
		isSystem := msg.Role == schema.System
		if i == 0 && !isSystem {
			return fmt.Errorf("%w: first message has role %q, want system", ErrInvalidRequest, msg.Role)
		}
		if i > 0 && isSystem {
			return fmt.Errorf("%w: extra system message at position %d", ErrInvalidRequest, i)
		}
	}
	return nil
}

// Completer sends a generation request and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}

// Client is the Completer backed by an eino chat model. Every call blocks
// until the full response arrives; failures are returned immediately.
type Client struct {
	chatModel    model.BaseChatModel
	defaultModel string
	logger       zerolog.Logger
}

// NewClient wraps chatModel. defaultModel is used for requests that do not
// name a model.
func NewClient(chatModel model.BaseChatModel, defaultModel string, logger zerolog.Logger) *Client {
	return &Client{
		chatModel:    chatModel,
		defaultModel: defaultModel,
		logger:       logger.With().Str("component", "completion").Logger(),
	}
}

// Complete runs one chat completion and returns the top choice's content.
func (c *Client) Complete(ctx context.Context, req GenerationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if c.chatModel == nil {
		return "", &CompletionError{Kind: ErrAuthentication, Err: fmt.Errorf("chat model not configured")}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if modelName != "" {
		opts = append(opts, model.WithModel(modelName))
	}

	start := time.Now()
	response, err := c.chatModel.Generate(ctx, req.Messages, opts...)
	if err != nil {
		classified := classifyError(err)
		c.logger.Warn().
			Err(classified).
			Str("model", modelName).
			Dur("elapsed", time.Since(start)).
			Msg("completion failed")
		return "", classified
	}
	if response == nil {
		return "", &CompletionError{Kind: ErrTransport, Err: ErrEmptyCompletion}
	}

	c.logger.Debug().
		Str("model", modelName).
		Float32("temperature", req.Temperature).
		Int("messages", len(req.Messages)).
		Int("length", len(response.Content)).
		Dur("elapsed", time.Since(start)).
		Msg("completion finished")

	return response.Content, nil
}
