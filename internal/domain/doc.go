// Package domain defines the core entities of the session-audio worker:
// recordings and their uploaded chunks, transcriptions and their speaker
// segments, and the derived content artifacts generated for sessions and
// clients. It has no dependencies on storage, queueing, or providers.
package domain
