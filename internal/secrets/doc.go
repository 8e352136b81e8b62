// Package secrets provides regexp-based secret detection and redaction.
//
// The indexing pipeline's extraction stage runs every entity's content
// through a Scrubber before it reaches embedding or storage, so a
// credential checked into a scanned repository is redacted rather than
// embedded, cached, or served back verbatim from search results.
package secrets
