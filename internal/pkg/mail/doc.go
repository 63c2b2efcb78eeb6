// Package mail defines the contracts for sending email messages.
//
// Callers work with the Mail interface and Message payload. SMTP talks to a
// real server; Log only writes the message to the default logger.
package mail
