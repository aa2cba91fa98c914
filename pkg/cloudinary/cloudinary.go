// Package cloudinary implements the signed upload API of the Cloudinary
// media host.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"

	"etlaq/pkg/httpclient"
)

const uploadBaseURL = "https://api.cloudinary.com/v1_1"

// Config holds Cloudinary credentials.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	BaseURL   string // overridable for tests
}

// UploadOptions control where and how a file is stored.
type UploadOptions struct {
	Folder       string
	PublicID     string
	ResourceType string // "image", "video", "raw" or "auto"
}

// UploadResult is the subset of the upload response the API exposes.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Format    string `json:"format,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Client uploads and deletes media through the Cloudinary HTTP API.
type Client struct {
	cfg  Config
	http *httpclient.Client
	now  func() time.Time
}

// NewClient creates a Cloudinary client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = uploadBaseURL
	}
	return &Client{
		cfg:  cfg,
		http: httpclient.New(60*time.Second, 0, time.Second),
		now:  time.Now,
	}
}

// Configured reports whether all credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.CloudName != "" && c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

// Signature computes the SHA-1 request signature over the sorted params.
func Signature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(params[k])
	}
	buf.WriteString(secret)

	sum := sha1.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// Upload sends a file to Cloudinary and returns the stored media metadata.
func (c *Client) Upload(ctx context.Context, data []byte, filename string, opts UploadOptions) (*UploadResult, error) {
	if !c.Configured() {
		return nil, errors.New("cloudinary not configured")
	}

	if opts.Folder == "" {
		opts.Folder = "uploads"
	}
	if opts.ResourceType == "" {
		opts.ResourceType = "auto"
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	params := map[string]string{
		"timestamp": timestamp,
		"folder":    opts.Folder,
	}
	if opts.PublicID != "" {
		params["public_id"] = opts.PublicID
	}
	signature := Signature(params, c.cfg.APISecret)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write upload form: %w", err)
	}
	fields := map[string]string{
		"api_key":   c.cfg.APIKey,
		"timestamp": timestamp,
		"signature": signature,
		"folder":    opts.Folder,
	}
	if opts.PublicID != "" {
		fields["public_id"] = opts.PublicID
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/%s/%s/upload", c.cfg.BaseURL, c.cfg.CloudName, opts.ResourceType)
	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}

	respBody, err := c.http.Do(ctx, http.MethodPost, uploadURL, header, body.Bytes())
	if err != nil {
		return nil, translateError(err, "upload failed")
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	return &result, nil
}

// Destroy deletes a stored file by its public id.
func (c *Client) Destroy(ctx context.Context, publicID, resourceType string) (bool, error) {
	if !c.Configured() {
		return false, errors.New("cloudinary not configured")
	}
	if resourceType == "" {
		resourceType = "image"
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}
	signature := Signature(params, c.cfg.APISecret)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"public_id": publicID,
		"api_key":   c.cfg.APIKey,
		"timestamp": timestamp,
		"signature": signature,
	} {
		if err := writer.WriteField(k, v); err != nil {
			return false, fmt.Errorf("failed to write destroy form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return false, fmt.Errorf("failed to finalize destroy form: %w", err)
	}

	destroyURL := fmt.Sprintf("%s/%s/%s/destroy", c.cfg.BaseURL, c.cfg.CloudName, resourceType)
	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}

	respBody, err := c.http.Do(ctx, http.MethodPost, destroyURL, header, body.Bytes())
	if err != nil {
		return false, translateError(err, "destroy failed")
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, fmt.Errorf("failed to parse destroy response: %w", err)
	}
	return result.Result == "ok", nil
}

// translateError maps the upstream JSON error shape onto a plain message.
func translateError(err error, fallback string) error {
	var upstream *httpclient.Error
	if !errors.As(err, &upstream) {
		return err
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal([]byte(upstream.Message), &parsed); jsonErr == nil && parsed.Error.Message != "" {
		return fmt.Errorf("%s: %s", fallback, parsed.Error.Message)
	}
	return fmt.Errorf("%s: status %d", fallback, upstream.Status)
}
