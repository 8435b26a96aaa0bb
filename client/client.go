package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"forumchat/models"
)

// Client 论坛服务的HTTP客户端
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient 创建客户端
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError 服务端错误响应
type apiError struct {
	Error string `json:"error"`
}

// doJSON 发送JSON请求并解码响应
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("请求失败(%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("请求失败(%d)", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// Login 登录并保存令牌
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string              `json:"token"`
		User  models.UserResponse `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	c.Token = resp.Token
	return nil
}

// Register 注册新用户
func (c *Client) Register(ctx context.Context, username, password, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/register", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	}, nil)
}

// ListForums 获取当前用户可见的论坛列表
func (c *Client) ListForums(ctx context.Context) ([]models.ForumResponse, error) {
	var resp struct {
		Forums []models.ForumResponse `json:"forums"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/forums", nil, &resp)
	return resp.Forums, err
}

// GetForum 获取论坛详情
func (c *Client) GetForum(ctx context.Context, forumID uint) (*models.ForumResponse, error) {
	var resp struct {
		Forum models.ForumResponse `json:"forum"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/forums/%d", forumID), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Forum, nil
}

// CreateForum 创建论坛（需要系统管理员）
func (c *Client) CreateForum(ctx context.Context, name, description string, members []uint) (*models.ForumResponse, error) {
	var resp struct {
		Forum models.ForumResponse `json:"forum"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/forums", models.ForumCreateRequest{
		Name:        name,
		Description: description,
		Members:     members,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Forum, nil
}

// UpdateForum 更新论坛名称和描述
func (c *Client) UpdateForum(ctx context.Context, forumID uint, name, description string) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/forums/%d", forumID), models.ForumUpdateRequest{
		Name:        name,
		Description: description,
	}, nil)
}

// DeleteForum 删除论坛
func (c *Client) DeleteForum(ctx context.Context, forumID uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/forums/%d", forumID), nil, nil)
}

// AddMember 添加论坛成员
func (c *Client) AddMember(ctx context.Context, forumID, userID uint) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/forums/%d/members", forumID), map[string]uint{
		"user_id": userID,
	}, nil)
}

// RemoveMember 移除论坛成员
func (c *Client) RemoveMember(ctx context.Context, forumID, userID uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/forums/%d/members/%d", forumID, userID), nil, nil)
}

// SetAdmin 设置或取消论坛管理员
func (c *Client) SetAdmin(ctx context.Context, forumID, userID uint, isAdmin bool) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/forums/%d/admins", forumID), map[string]interface{}{
		"user_id":  userID,
		"is_admin": isAdmin,
	}, nil)
}

// GetMessages 拉取论坛消息，按创建顺序升序
func (c *Client) GetMessages(ctx context.Context, forumID uint, limit int) ([]models.MessageResponse, error) {
	path := fmt.Sprintf("/api/messages/forum/%d", forumID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Messages []models.MessageResponse `json:"messages"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp.Messages, err
}

// SendMessage 发送文本或贴纸消息
func (c *Client) SendMessage(ctx context.Context, forumID uint, msgType models.MessageType, content string, replyToID uint) (*models.Message, error) {
	var resp struct {
		Data models.Message `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/messages", models.MessageCreateRequest{
		ForumID:   forumID,
		Type:      msgType,
		Content:   content,
		ReplyToID: replyToID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// SendFile 上传附件并发送附件消息
func (c *Client) SendFile(ctx context.Context, forumID uint, replyToID uint, fileName, contentType string, content io.Reader) (*models.Message, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("forum_id", strconv.FormatUint(uint64(forumID), 10))
	if replyToID != 0 {
		_ = writer.WriteField("reply_to_id", strconv.FormatUint(uint64(replyToID), 10))
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/messages/file", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("上传失败(%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("上传失败(%d)", resp.StatusCode)
	}

	var out struct {
		Data models.Message `json:"data"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeleteMessage 删除消息
func (c *Client) DeleteMessage(ctx context.Context, messageID uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil, nil)
}

// DownloadAttachment 下载消息附件
func (c *Client) DownloadAttachment(ctx context.Context, messageID uint) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/messages/%d/download", c.BaseURL, messageID), nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("下载失败(%d)", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ProxyURL 生成附件的内嵌渲染地址（图片预览用）
func (c *Client) ProxyURL(attachmentPath string) string {
	return c.BaseURL + "/api/messages/proxy?path=" + url.QueryEscape(attachmentPath)
}

// GetStickers 获取贴纸目录
func (c *Client) GetStickers(ctx context.Context) ([]models.Sticker, error) {
	var resp struct {
		Stickers []models.Sticker `json:"stickers"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/stickers", nil, &resp)
	return resp.Stickers, err
}
