// Package domain contains the core business entities and rules for DocuLens:
// events, documents and their lifecycle, chunks, retrieval results, QA
// answers, summaries, classification history and the label taxonomy.
// It has no dependencies on adapters or infrastructure.
package domain
