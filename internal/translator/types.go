package translator

import (
	"context"
)

// AutoSource asks the backend to detect the source language.
const AutoSource = "auto"

// Translator is the remote translation capability. Implementations must
// leave the caller's delimiter token untouched and in place so that
// joined segments can be split apart again after translation.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text, source, target string) (string, error)

func (f Func) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}
