// Package model defines the provider-agnostic abstraction for language
// models used by shopmesh: conversational replies and session summaries.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Bound every call with a timeout and map failures to
//     core.ErrGenerationUnavailable (GenerateText)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so higher
// layers remain decoupled from vendor SDKs.
package model
