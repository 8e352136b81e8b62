// Package pipeline implements the five-stage indexing pipeline: file
// discovery, entity extraction, embedding, relational
// storage with transactional outbox, and snapshot reconciliation. Stages
// run as independent goroutines connected by bounded channels; the Driver
// wires them together and owns cancellation and error propagation.
package pipeline
