// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing sessions and candidates and when
// simulating failing or slow backends. They are not intended for
// production usage.
package testutil
