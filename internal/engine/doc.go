// Package engine wraps the native inference libraries behind a small
// load/complete surface. Heavy lifting (tokenization, sampling, KV cache,
// GPU offload) stays inside the wrapped library.
//
// Engines:
//
//   - llama: in-process go-llama.cpp. Enabled with `-tags=llama`; without the
//     tag a stub is compiled that fails fast with a dependency error so default
//     builds stay CGO-free. Files: llama.go, llama_cgo.go, llama_stub.go.
//
//   - openai: an OpenAI-compatible llama.cpp server (llama-server) reached over
//     HTTP through go-openai. File: openai.go.
package engine
