// Package model defines the provider-agnostic text-completion port used by
// model-backed evaluators.
//
// Providers (model/anthropic, model/openai) implement Model so evaluators
// stay decoupled from vendor SDKs. MockModel serves tests and offline runs.
package model
