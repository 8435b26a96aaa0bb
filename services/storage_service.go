package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"forumchat/models"
)

// StorageService 附件对象存储服务（GCS）
// 附件的读写都经过后端代理，不向客户端暴露存储凭证
type StorageService struct {
	client       *storage.Client
	bucketName   string
	uploadFolder string
}

// NewStorageService 创建对象存储服务
func NewStorageService(bucketName, credentialsPath, uploadFolder string) (*StorageService, error) {
	ctx := context.Background()

	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("创建GCS客户端失败: %v", err)
	}

	return &StorageService{
		client:       client,
		bucketName:   bucketName,
		uploadFolder: uploadFolder,
	}, nil
}

// SaveFile 将上传的附件写入对象存储，返回存储路径
func (s *StorageService) SaveFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("打开上传文件失败: %v", err)
	}
	defer src.Close()

	// 对象名：uuid_时间戳.扩展名，避免同名文件覆盖
	ext := filepath.Ext(file.Filename)
	objectName := fmt.Sprintf("%s_%s%s", uuid.New().String(), time.Now().Format("20060102150405"), ext)
	objectPath := fmt.Sprintf("%s/%s", s.uploadFolder, objectName)

	obj := s.client.Bucket(s.bucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = ContentTypeForExt(ext)

	if _, err := io.Copy(writer, src); err != nil {
		writer.Close()
		return "", fmt.Errorf("上传附件失败: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("关闭存储写入失败: %v", err)
	}

	return objectPath, nil
}

// DownloadFile 从对象存储读取附件
func (s *StorageService) DownloadFile(ctx context.Context, objectPath string) ([]byte, error) {
	obj := s.client.Bucket(s.bucketName).Object(objectPath)

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取附件失败: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取附件内容失败: %v", err)
	}

	return data, nil
}

// DeleteFile 从对象存储删除附件
func (s *StorageService) DeleteFile(objectPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	obj := s.client.Bucket(s.bucketName).Object(objectPath)
	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("删除附件失败: %v", err)
	}

	return nil
}

// Close 关闭存储客户端
func (s *StorageService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// documentMIMEs pdf和office类文档的MIME前缀
var documentMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/vnd.oasis.opendocument",
}

// ClassifyFileType 根据MIME类型划分附件消息类型
// image/* 归为图片，pdf/office归为文档，其余无法识别的一律按普通文件处理
func ClassifyFileType(contentType string) models.MessageType {
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	if strings.HasPrefix(contentType, "image/") {
		return models.ImageMessage
	}

	for _, mime := range documentMIMEs {
		if strings.HasPrefix(contentType, mime) {
			return models.DocumentMessage
		}
	}

	return models.FileMessage
}

// contentTypes 扩展名到MIME类型的映射
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
}

// ContentTypeForExt 根据扩展名推断MIME类型
func ContentTypeForExt(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
