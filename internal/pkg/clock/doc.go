// Package clock provides a tiny time abstraction.
//
// Code that measures a validity window should depend on Clocker instead of
// calling time.Now() directly, so tests can drive expiry with Manual.
package clock
