// Package thumbs renders thumbnails during library scans. Source
// bytes come in, a JPEG capped to a configured long edge plus the
// original pixel dimensions come out. Decoding prefers libvips when
// available for its decode-time shrinking, falling back to pure-Go
// decoders otherwise.
package thumbs
