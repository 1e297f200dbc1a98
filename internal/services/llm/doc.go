// Package llm provides a JSON-mode chat completion client for
// OpenRouter-compatible APIs, with bounded retries and tolerant decoding of
// model output.
package llm
