package types

// Model represents a loadable GGUF model on disk.
type Model struct {
	// Stable identifier for the model (file name).
	// example: deepseek-coder-6.7b-base.Q4_K_M.gguf
	ID string `json:"id" example:"deepseek-coder-6.7b-base.Q4_K_M.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/deepseek-coder-6.7b-base.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/deepseek-coder-6.7b-base.Q4_K_M.gguf"`
	// Quantization level parsed from the file name, if recognizable.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// File size in bytes.
	SizeBytes int64 `json:"size_bytes,omitempty"`
}
