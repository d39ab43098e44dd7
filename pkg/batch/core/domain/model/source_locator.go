package model

import (
	"fmt"
	"path"
	"strings"
)

// SourceLocator references the source blob of an import.
type SourceLocator struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ParseSourceLocator parses "gs://bucket/key", "bucket/key" or a bare key (empty bucket, resolved
// against the storage connection's default bucket).
func ParseSourceLocator(raw string) (SourceLocator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SourceLocator{}, fmt.Errorf("source locator is empty")
	}
	if rest, ok := strings.CutPrefix(trimmed, "gs://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return SourceLocator{}, fmt.Errorf("source locator %q must have the form gs://bucket/key", raw)
		}
		return SourceLocator{Bucket: bucket, Key: key}, nil
	}
	return SourceLocator{Key: strings.TrimPrefix(trimmed, "/")}, nil
}

// String renders the locator as "bucket/key" (or just the key when no bucket is set).
func (l SourceLocator) String() string {
	if l.Bucket == "" {
		return l.Key
	}
	return l.Bucket + "/" + l.Key
}

// Extension returns the lower-cased file extension of the key without the dot.
func (l SourceLocator) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(l.Key)), ".")
}

// Identity derives the owning user and list from the key: ".../<userId>/<listId>.<ext>".
func (l SourceLocator) Identity() (userID string, listID string, err error) {
	key := strings.Trim(l.Key, "/")
	dir, file := path.Split(key)
	listID = strings.TrimSuffix(file, path.Ext(file))
	userID = path.Base(strings.TrimSuffix(dir, "/"))
	if listID == "" || dir == "" || userID == "" || userID == "." || userID == "/" {
		return "", "", fmt.Errorf("source key %q does not identify a user and list (expected <userId>/<listId>.<ext>)", l.Key)
	}
	return userID, listID, nil
}
