// Package otp issues one-time passcodes to an email address and verifies
// user-supplied candidates against them.
//
// A Session owns the lifecycle of a single code: the address is gated by an
// AddressValidator, a six digit code is generated and handed to a Delivery,
// and once delivered the code can be verified by a Verification loop that
// polls an Input on a fixed cadence until the code matches, the attempt
// budget runs out, the validity window elapses, the input fails or the
// caller cancels.
//
// Transport (how the message reaches the mailbox) and the input source (how a
// candidate reaches the loop) are collaborators supplied by the embedder.
package otp
