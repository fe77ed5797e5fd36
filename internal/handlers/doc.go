// Package handlers implements the HTTP API: library lifecycle and
// scan progress, image listing and fetch, tag operations, and media
// delivery for originals and thumbnails.
package handlers
