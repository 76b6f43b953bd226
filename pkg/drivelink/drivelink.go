// Package drivelink extracts Google Drive folder identifiers from pasted links.
package drivelink

import (
	"regexp"
	"strings"
)

var (
	folderPathRe = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	idParamRe    = regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`)
	bareIDRe     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractFolderID returns the folder id contained in value. It accepts a
// ".../folders/<id>" URL, a "?id=<id>" style URL or a bare identifier.
// The id is not checked against Drive.
func ExtractFolderID(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if m := folderPathRe.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	if m := idParamRe.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	if bareIDRe.MatchString(value) {
		return value, true
	}
	return "", false
}

// FolderURL builds the canonical browser URL for a folder id.
func FolderURL(id string) string {
	return "https://drive.google.com/drive/folders/" + id
}
