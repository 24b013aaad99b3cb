// Package transcribe defines the transcription provider capability and
// its implementations: the OpenAI Whisper SDK provider and the Yandex
// SpeechKit asynchronous long-audio provider. Providers are selected by
// name through a lazily constructed, cached registry.
package transcribe
