package store

import "tagify/internal/mediatypes"

// ObjectKey builds the originals-bucket key for an image. Keys are
// prefixed with the library id so a whole library can be removed with
// one prefix delete.
func ObjectKey(libraryID, imageID, path string) string {
	return libraryID + "/" + imageID + "." + mediatypes.Ext(path)
}

// ThumbKey builds the thumbs-bucket key for an image. Thumbnails are
// always JPEG regardless of the source format.
func ThumbKey(libraryID, imageID string) string {
	return libraryID + "/" + imageID + ".jpg"
}
