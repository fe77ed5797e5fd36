// Package mediatypes classifies files by extension and maps them to
// MIME types. Only still-image formats are supported; the allow-list
// mirrors what the derivative generator can decode.
package mediatypes
