// Package printavo is a client for the Printavo v2 GraphQL API covering the
// calls needed to build a quote: customer lookup and creation, quote
// creation, and line items.
//
// Every call ends in one of four outcomes. Transient failures never reached
// the server or were refused before processing and are safe to repeat.
// Ambiguous outcomes were written to the wire but produced no usable reply,
// so a mutation may or may not have been applied; those are never retried
// automatically. Fatal outcomes mean the credentials were refused.
package printavo
