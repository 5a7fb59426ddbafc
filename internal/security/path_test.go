package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{name: "valid relative path", path: "photos/photo_1.jpg"},
		{name: "dots inside a name", path: "files/report..final.pdf"},
		{name: "empty path", path: "", wantErr: true, errMsg: "path cannot be empty"},
		{name: "directory traversal", path: "../../../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "traversal after clean", path: "photos/../../secret", wantErr: true, errMsg: "directory traversal"},
		{name: "absolute path", path: "/etc/passwd", wantErr: true, errMsg: "absolute paths not allowed"},
		{name: "NUL byte", path: "photos/a\x00.jpg", wantErr: true, errMsg: "NUL byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	base := t.TempDir()

	assert.NoError(t, ValidateFilePathWithBase("stickers/s.webp", base))
	assert.NoError(t, ValidateFilePathWithBase("./photos/../photos/a.jpg", base))
	assert.Error(t, ValidateFilePathWithBase("../outside.jpg", base))
	assert.Error(t, ValidateFilePathWithBase("", base))
}
