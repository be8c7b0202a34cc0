// Package llm is a small OpenRouter-compatible chat completion client used by
// the content-intelligence provider.
//
// Every request asks for a JSON object response. Replies are extracted from
// message content, streaming deltas, legacy text or tool-call arguments, and
// DecodeJSON tolerates code fences and prose around the payload.
//
// The client retries HTTP 408/429/5xx responses, network timeouts and empty
// completions with exponential backoff (base 1s, max 10s, 5 attempts by
// default). Context cancellation aborts retries immediately. Errors carry the
// services.ErrExternalTool marker so callers can route them to fallbacks.
package llm
