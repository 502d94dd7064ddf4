// Package llm resolves ambiguous order rows with a language model.
// It supports the Anthropic and OpenAI chat APIs behind one Client interface,
// with rate limiting, per-run response caching, and retry on transient errors.
package llm
