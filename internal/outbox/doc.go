// Package outbox implements the outbox projector: a
// standalone poll loop that drains the relational store's transactional
// outbox and applies each row to the vector store, marking it processed on
// success and recording retryable failures otherwise.
package outbox
