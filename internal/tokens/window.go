package tokens

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrLimitExceedsContextWindow indicates a requested token limit larger than
// the model's maximum context window. This is a configuration bug and is
// surfaced rather than clamped.
var ErrLimitExceedsContextWindow = errors.New("token limit exceeds the model's context window")

// ErrUnknownModel indicates a model missing from ContextWindows.
var ErrUnknownModel = errors.New("unknown model")

// ContextWindows maps model identifiers to their maximum context window in
// tokens. Loaded once, never mutated.
var ContextWindows = map[string]int{
	"gpt-4o-mini-2024-07-18": 128_000,
	"gpt-4o-2024-08-06":      128_000,
	"gpt-4o-mini":            128_000,
	"gpt-4o":                 128_000,
}

// Estimating tokens is slow for large message arrays, so Window switches
// strategy on the limit: for small limits the fitting suffix is short and a
// linear scan from the shortest candidate wins; for large limits we binary
// search over the start index, using the monotonicity of "suffix starting at
// i fits".
const linearScanLimit = 1000

// Window returns the longest trailing contiguous subsequence of messages
// whose estimated token count does not exceed tokenLimit. The input is never
// mutated; the result is a fresh slice. If even the most recent message is
// over the limit, the result is empty.
func Window(messages []openai.ChatCompletionMessage, model string, enc Encoding, tokenLimit int) ([]openai.ChatCompletionMessage, error) {
	maxWindow, ok := ContextWindows[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if tokenLimit > maxWindow {
		return nil, fmt.Errorf("%w: %d > %d (%s)", ErrLimitExceedsContextWindow, tokenLimit, maxWindow, model)
	}

	if tokenLimit <= linearScanLimit {
		return windowLinear(messages, enc, tokenLimit)
	}
	return windowBinary(messages, enc, tokenLimit)
}

// windowLinear grows the candidate suffix one message at a time, newest
// first, and returns the last suffix that still fit.
func windowLinear(messages []openai.ChatCompletionMessage, enc Encoding, tokenLimit int) ([]openai.ChatCompletionMessage, error) {
	for n := 1; n <= len(messages); n++ {
		count, err := Estimate(messages[len(messages)-n:], enc)
		if err != nil {
			return nil, err
		}
		if count > tokenLimit {
			if n == 1 {
				return []openai.ChatCompletionMessage{}, nil
			}
			return copySlice(messages[len(messages)-n+1:]), nil
		}
	}
	return copySlice(messages), nil
}

// windowBinary searches for the minimal start index whose suffix fits.
func windowBinary(messages []openai.ChatCompletionMessage, enc Encoding, tokenLimit int) ([]openai.ChatCompletionMessage, error) {
	low, high := 0, len(messages)
	ans := len(messages)

	for low <= high {
		mid := (low + high) / 2
		count, err := Estimate(messages[mid:], enc)
		if err != nil {
			return nil, err
		}
		if count <= tokenLimit {
			ans = mid
			high = mid - 1
		} else {
			low = mid + 1
		}
	}
	return copySlice(messages[ans:]), nil
}

func copySlice(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	copy(out, messages)
	return out
}
