package domain

// Compressor turns a local file into a compressed copy and back.
type Compressor interface {
	Compress(sourcePath, destPath string) error
	Decompress(sourcePath, destPath string) error
}
