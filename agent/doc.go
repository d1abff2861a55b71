// Package agent contains the shopping agent loop. For each user message it
//
//  1. takes the per-session lock and loads memory
//  2. decides between a product query and a conversational reply (Classifier)
//  3. invokes the product search tool at most once, with the query augmented
//     by constraints remembered from earlier turns
//  4. composes the reply and commits the user and assistant turns
//
// The Agent is the error boundary of the pipeline: HandleMessage never
// returns an error. Retrieval and generation failures become degraded
// replies with an empty product list, and memory store failures are logged
// and swallowed.
package agent
