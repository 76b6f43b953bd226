package drivelink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFolderID(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"folder url", "https://drive.google.com/drive/folders/ABC123", "ABC123", true},
		{"folder url with user segment", "https://drive.google.com/drive/u/0/folders/1a-B_c?usp=sharing", "1a-B_c", true},
		{"open id url", "https://drive.google.com/open?id=ABC123", "ABC123", true},
		{"id as second param", "https://drive.google.com/open?usp=x&id=XYZ_9", "XYZ_9", true},
		{"bare id", "ABC123", "ABC123", true},
		{"bare id with spaces", "  ABC123 ", "ABC123", true},
		{"not a link", "not a link!", "", false},
		{"empty", "", "", false},
		{"url without id", "https://drive.google.com/drive/my-drive", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFolderID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFolderURL(t *testing.T) {
	id, ok := ExtractFolderID(FolderURL("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
