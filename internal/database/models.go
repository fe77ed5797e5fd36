package database

import "time"

// Library is a registered filesystem root tracked for scanning and
// browsing. The scan_* fields form the durable scan state machine:
// idle (scanning=false), scanning, done (last_scanned set) or error
// (scan_error set).
type Library struct {
	ID           string     `json:"id"`
	RootPath     string     `json:"rootPath"`
	DisplayName  string     `json:"displayName"`
	Scanning     bool       `json:"scanning"`
	ScanTotal    int64      `json:"scanTotal"`
	ScanDone     int64      `json:"scanDone"`
	ScanError    string     `json:"scanError,omitempty"`
	IndexedCount int64      `json:"indexedCount"`
	LastScanned  *time.Time `json:"lastScanned,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Image is the full metadata document for one indexed file. An empty
// ThumbKey means the scan is still in progress for this file or its
// derivative could not be generated.
type Image struct {
	ID           string    `json:"id"`
	LibraryID    string    `json:"libraryId"`
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Tags         []string  `json:"tags"`
	OriginalKey  string    `json:"originalKey,omitempty"`
	ThumbKey     string    `json:"thumbKey,omitempty"`
}

// ImageSummary is the projected row returned from listings. Full
// documents come only from single-image fetches.
type ImageSummary struct {
	ID           string `json:"id"`
	RelativePath string `json:"relativePath"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	HasThumb     bool   `json:"hasThumb"`
}

// TagCount is a derived tag aggregate; fully recomputable from image
// tags at any time.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// TagLogic selects how multiple tag filters combine.
type TagLogic string

const (
	// TagLogicAnd matches images carrying every requested tag.
	TagLogicAnd TagLogic = "and"
	// TagLogicOr matches images carrying any requested tag.
	TagLogicOr TagLogic = "or"
)

// ListOptions are the filters for ListImages. NoTags takes precedence
// over Tags. Cursor is the id of the last row of the previous page;
// an empty cursor starts from the top.
type ListOptions struct {
	LibraryID string
	Tags      []string
	Logic     TagLogic
	NoTags    bool
	Cursor    string
	Limit     int
}
