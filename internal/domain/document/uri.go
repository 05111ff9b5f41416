package document

import (
	"encoding/base64"
	"strings"
)

// Location classifies where a field payload lives.
type Location int

const (
	// LocationNone means the field has no URI.
	LocationNone Location = iota
	// LocationLocal means the URI only resolves on this machine.
	LocationLocal
	// LocationRemote means the URI is durable on its own (bucket, URL or inline data).
	LocationRemote
)

var remoteSchemes = []string{"s3://", "gs://", "http://", "https://", "data:"}

// Classify returns where uri points to.
func Classify(uri string) Location {
	if uri == "" {
		return LocationNone
	}
	lower := strings.ToLower(uri)
	for _, p := range remoteSchemes {
		if strings.HasPrefix(lower, p) {
			return LocationRemote
		}
	}
	return LocationLocal
}

// Scheme returns the URI scheme, "file" for bare paths and "data" for inline URIs.
func Scheme(uri string) string {
	if strings.HasPrefix(strings.ToLower(uri), "data:") {
		return "data"
	}
	if i := strings.Index(uri, "://"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return "file"
}

// DataURI encodes data inline so it no longer depends on a local path.
func DataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
