// Package services implements the core business logic: the event
// dispatcher, the worker pool, the document lifecycle state machine, the
// ingestion pipeline, and the retrieval, QA, summarization, and
// classification engines.
//
// Services implement the driving port interfaces and depend only on driven
// ports, never on concrete adapters.
package services
