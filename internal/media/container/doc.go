// Package container owns the container/codec compatibility decisions behind
// every video operation.
//
// A container (MPEG, MP4, Matroska) is distinct from the codecs of the streams
// inside it. Each container has canonical encoders this system re-encodes
// with; a stream copy is only valid when the source stream's codec already
// matches the target container's canonical codec. The decision tables here map
// file extensions to specs, translate encoder names to the stream codec names
// ffprobe reports, and plan stream copy vs re-encode for audio, trim, and
// multi-input merge.
package container
