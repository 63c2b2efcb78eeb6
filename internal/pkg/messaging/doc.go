// Package messaging publishes events to a broker without tying callers to it.
//
// Business code depends on Publisher; the driver (NATS, NSQ, Kafka or the
// in-process Memory recorder) is picked at startup by NewFromDriver.
package messaging
