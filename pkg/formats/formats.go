// Package formats provides the on-disk formats of the terrain pipeline:
// the human-authored scene descriptor and the compressed terrain artifact.
package formats

// Note: the descriptor (.terrain.yaml) is implemented in descriptor.go
// Note: the artifact (.terrain.bin) is implemented in terrain.go and compress.go
