// Package sherpa adapts sherpa-onnx offline models to parley backends.
//
// The real implementation links the sherpa-onnx C library and is compiled
// only with the "sherpa" build tag. Without it every constructor returns a
// configuration error naming the missing tag.
package sherpa
