// Package testutil contains helper builders, fake evaluators and a capturing
// logger used across tests to reduce boilerplate when constructing opinions,
// proposals and evaluator registries. They are not intended for production
// usage.
package testutil
