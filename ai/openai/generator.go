package openai

import (
	"context"
	"iter"
	"log/slog"

	"github.com/Devcavi19/adal-4naga-app/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator on top of a langchaingo chat model
// using its streaming callback.
type Generator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a streaming generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Stream sends the request and yields chunks as the model produces them.
// The request runs on its own goroutine; chunks are handed over through an
// unbuffered channel so the model is never more than one chunk ahead of the
// consumer.
func (g *Generator) Stream(ctx context.Context, req ai.GenerationRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		messages := []llms.MessageContent{
			{
				Role:  llms.ChatMessageTypeSystem,
				Parts: []llms.ContentPart{llms.TextPart(req.System)},
			},
			{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
			},
		}

		chunks := make(chan string)
		done := make(chan error, 1)
		go func() {
			_, err := g.client.GenerateContent(ctx, messages,
				llms.WithTemperature(g.temperature),
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					select {
					case chunks <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			)
			done <- err
			close(chunks)
		}()

		for chunk := range chunks {
			if !yield(chunk, nil) {
				g.logger.Debug("consumer stopped reading, cancelling generation")
				return
			}
		}

		if err := <-done; err != nil {
			g.logger.Error("generation failed", "err", err)
			yield("", err)
		}
	}
}
