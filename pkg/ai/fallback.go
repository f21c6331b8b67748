package ai

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"bookgraph/pkg/logger"
)

// ErrModelsExhausted indicates that every model in the ranked list failed
// for a single request.
var ErrModelsExhausted = errors.New("all models in the ranked list failed")

// GenerateWithFallback issues a free-text completion against a ranked list
// of models. Each model gets exactly one attempt under its own perCall
// timeout; any error advances to the next model. Cancellation of the parent
// context is returned as the context error rather than as exhaustion.
func GenerateWithFallback(
	ctx context.Context,
	client CharacterAIClient,
	models []string,
	perCall time.Duration,
	prompt string,
	opts ...GenerateOption,
) (string, error) {
	if len(models) == 0 {
		return "", fmt.Errorf("%w: empty model list", ErrModelsExhausted)
	}

	var lastErr error
	for _, model := range models {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		callOpts := make([]GenerateOption, 0, len(opts)+1)
		callOpts = append(callOpts, opts...)
		callOpts = append(callOpts, WithModel(model))

		callCtx, cancel := context.WithTimeout(ctx, perCall)
		resp, err := client.GenerateCompletion(callCtx, prompt, callOpts...)
		cancel()
		if err == nil {
			return resp, nil
		}

		logger.Warn("Model call failed, advancing to next model", "model", model, "err", err)
		lastErr = err
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", fmt.Errorf("%w: last error: %v", ErrModelsExhausted, lastErr)
}

// GenerateFormatWithFallback issues a structured completion against a ranked
// list of models, decoding the response into out. A non-nil validate
// function runs after decoding; its failure counts as a model failure and
// advances the list, exactly like a transport error or a timeout.
func GenerateFormatWithFallback(
	ctx context.Context,
	client CharacterAIClient,
	models []string,
	perCall time.Duration,
	name string,
	description string,
	prompt string,
	out any,
	validate func() error,
	opts ...GenerateOption,
) error {
	if len(models) == 0 {
		return fmt.Errorf("%w: empty model list", ErrModelsExhausted)
	}

	var lastErr error
	for _, model := range models {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		callOpts := make([]GenerateOption, 0, len(opts)+1)
		callOpts = append(callOpts, opts...)
		callOpts = append(callOpts, WithModel(model))

		// Each attempt decodes into a zeroed value; fields from a rejected
		// response must not survive into the next model's payload.
		resetValue(out)

		callCtx, cancel := context.WithTimeout(ctx, perCall)
		err := client.GenerateCompletionWithFormat(callCtx, name, description, prompt, out, callOpts...)
		cancel()
		if err == nil && validate != nil {
			err = validate()
		}
		if err == nil {
			return nil
		}

		logger.Warn("Model call failed, advancing to next model", "model", model, "err", err)
		lastErr = err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: last error: %v", ErrModelsExhausted, lastErr)
}

func resetValue(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v.Elem().Set(reflect.Zero(v.Elem().Type()))
}
