// Package speakerdb stores voice signatures of known speakers in SQLite so
// diarization labels can be replaced by names across transcriptions.
//
// Embeddings are unit-normalized on write. Saving an existing name (case
// insensitive) blends the new embedding into the stored one, so a signature
// adapts as more recordings of the same person are added. Matching uses
// cosine similarity.
package speakerdb
