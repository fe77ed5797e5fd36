package handlers

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		spec  string
		size  int64
		start int64
		end   int64
		err   error
	}{
		{"first hundred", "bytes=0-99", 1000, 0, 99, nil},
		{"interior", "bytes=500-599", 1000, 500, 599, nil},
		{"open ended", "bytes=900-", 1000, 900, 999, nil},
		{"suffix", "bytes=-100", 1000, 900, 999, nil},
		{"suffix longer than object", "bytes=-5000", 1000, 0, 999, nil},
		{"end clamped to size", "bytes=0-5000", 1000, 0, 999, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, nil},
		{"last byte", "bytes=999-999", 1000, 999, 999, nil},
		{"start at size", "bytes=1000-", 1000, 0, 0, errUnsatisfiable},
		{"start past size", "bytes=2000-2099", 1000, 0, 0, errUnsatisfiable},
		{"zero suffix", "bytes=-0", 1000, 0, 0, errUnsatisfiable},
		{"empty object", "bytes=0-0", 0, 0, 0, errUnsatisfiable},
		{"missing unit", "0-99", 1000, 0, 0, errMalformedRange},
		{"wrong unit", "chunks=0-99", 1000, 0, 0, errMalformedRange},
		{"no dash", "bytes=099", 1000, 0, 0, errMalformedRange},
		{"inverted", "bytes=99-0", 1000, 0, 0, errMalformedRange},
		{"multi range", "bytes=0-1,5-6", 1000, 0, 0, errMalformedRange},
		{"garbage", "bytes=abc-def", 1000, 0, 0, errMalformedRange},
		{"empty spec", "bytes=", 1000, 0, 0, errMalformedRange},
		{"bare dash", "bytes=-", 1000, 0, 0, errMalformedRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseRange(tt.spec, tt.size)
			if !errors.Is(err, tt.err) {
				t.Fatalf("parseRange(%q, %d) error = %v, want %v", tt.spec, tt.size, err, tt.err)
			}
			if err != nil {
				return
			}
			if start != tt.start || end != tt.end {
				t.Errorf("parseRange(%q, %d) = %d-%d, want %d-%d",
					tt.spec, tt.size, start, end, tt.start, tt.end)
			}
		})
	}
}
