package services

import (
	"testing"

	"forumchat/models"
)

func TestClassifyFileType(t *testing.T) {
	tests := []struct {
		contentType string
		want        models.MessageType
	}{
		{"image/png", models.ImageMessage},
		{"image/jpeg", models.ImageMessage},
		{"image/webp", models.ImageMessage},
		{"IMAGE/PNG", models.ImageMessage},
		{"application/pdf", models.DocumentMessage},
		{"application/msword", models.DocumentMessage},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", models.DocumentMessage},
		{"application/vnd.ms-excel", models.DocumentMessage},
		{"application/zip", models.FileMessage},
		{"text/plain", models.FileMessage},
		{"application/octet-stream", models.FileMessage},
		{"", models.FileMessage},
		{"乱七八糟", models.FileMessage},
	}

	for _, tt := range tests {
		if got := ClassifyFileType(tt.contentType); got != tt.want {
			t.Errorf("ClassifyFileType(%q) = %s, 期望 %s", tt.contentType, got, tt.want)
		}
	}
}

func TestContentTypeForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".png", "image/png"},
		{".PDF", "application/pdf"},
		{".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := ContentTypeForExt(tt.ext); got != tt.want {
			t.Errorf("ContentTypeForExt(%q) = %s, 期望 %s", tt.ext, got, tt.want)
		}
	}
}
