package store

import "testing"

func TestObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lib      string
		imageID  string
		path     string
		expected string
	}{
		{"simple", "lib1", "lib1:a.png", "a.png", "lib1/lib1:a.png.png"},
		{"nested path", "lib1", "lib1:sub/b.jpeg", "sub/b.jpeg", "lib1/lib1:sub/b.jpeg.jpeg"},
		{"uppercase ext", "lib1", "lib1:c.PNG", "c.PNG", "lib1/lib1:c.PNG.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey(tt.lib, tt.imageID, tt.path); got != tt.expected {
				t.Errorf("ObjectKey = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestThumbKeyAlwaysJPEG(t *testing.T) {
	t.Parallel()

	if got := ThumbKey("lib1", "lib1:a.webp"); got != "lib1/lib1:a.webp.jpg" {
		t.Errorf("ThumbKey = %q, want lib1/lib1:a.webp.jpg", got)
	}
}
