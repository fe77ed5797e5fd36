// Package store is the gateway to the S3-compatible object store
// holding original image bytes and generated thumbnails, one bucket
// each. Objects are written once per scan and treated as immutable;
// their keys are derived deterministically from the owning library and
// image ids.
package store
