// Package generation defines the interface to the LLM collaborator used
// for speaker role classification and artifact content generation. The
// generation internals live behind a single capability so callers never
// depend on a concrete provider.
package generation
