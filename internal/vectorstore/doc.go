// Package vectorstore loads embedded chunks into a vector index.
//
// A Loader embeds all chunks in one call and upserts them in one run.
// Three providers are available:
//
//   - pinecone: the Pinecone Go SDK over gRPC, vector IDs equal to chunk
//     IDs, chunk text under the "text" metadata key, records written to
//     the configured namespace in batches of 100
//   - qdrant: the official gRPC client; the collection is the index name
//     and is created with cosine distance on first use
//   - chromem: an embedded, persistent chromem-go database for offline runs
//
// Every record carries the chunk text, its document_id and chunk_index.
// Record IDs are derived from the chunk ID, so re-running over an unchanged
// document overwrites its records. Loaders do not retry; any error aborts
// the run.
package vectorstore
