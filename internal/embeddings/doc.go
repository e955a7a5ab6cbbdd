// Package embeddings turns chunk text into vectors.
//
// Two providers share the Provider interface: an OpenAI-compatible HTTP
// client (OpenAI, Azure-style proxies, TEI's OpenAI route) and FastEmbed,
// which runs BGE/MiniLM ONNX models in-process and needs a cgo build.
package embeddings
