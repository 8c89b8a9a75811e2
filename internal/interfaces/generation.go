package interfaces

import "context"

// StructuredGenerator produces a schema-typed result from the generation
// service. The result is deserialized into out; malformed output is an
// error, never a partially-filled value.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, instructions, input, schemaName string, out any) error
}

// NarrationStreamer produces continuation narration incrementally. onDelta
// is called for every text chunk as it arrives; the full accumulated text
// is returned once the stream completes. An aborted stream returns an error
// and the partial text must be discarded by the caller.
type NarrationStreamer interface {
	StreamNarration(ctx context.Context, instructions, input string, onDelta func(chunk string)) (string, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
