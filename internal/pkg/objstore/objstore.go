package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrDisabled 未配置对象存储。
var ErrDisabled = errors.New("object storage not configured")

// Options S3 兼容存储参数（R2 / MinIO / AWS S3）。
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	PresignTTL      time.Duration
}

// UploadURL 预签名直传地址。
type UploadURL struct {
	URL       string              `json:"upload_url"`
	Method    string              `json:"method"`
	Headers   map[string][]string `json:"headers"`
	ObjectKey string              `json:"object_key"`
	FileURL   string              `json:"file_url"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Presigner 为附件生成预签名 PUT 链接，客户端直传后再登记附件。
type Presigner struct {
	presign *s3.PresignClient
	opts    Options
	now     func() time.Time
}

// New 创建预签名器。Bucket 为空时返回 ErrDisabled。
func New(ctx context.Context, opts Options) (*Presigner, error) {
	if opts.Bucket == "" {
		return nil, ErrDisabled
	}
	if opts.Region == "" {
		opts.Region = "auto"
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{
		presign: s3.NewPresignClient(client),
		opts:    opts,
		now:     time.Now,
	}, nil
}

// PresignUpload 为任务附件生成上传链接。
func (p *Presigner) PresignUpload(ctx context.Context, taskID, fileName, contentType string) (*UploadURL, error) {
	if p == nil {
		return nil, ErrDisabled
	}
	key := ObjectKey(taskID, fileName)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.opts.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := p.presign.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = p.opts.PresignTTL
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &UploadURL{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   http.Header(req.SignedHeader),
		ObjectKey: key,
		FileURL:   p.fileURL(key),
		ExpiresAt: p.now().UTC().Add(p.opts.PresignTTL),
	}, nil
}

func (p *Presigner) fileURL(key string) string {
	base := strings.TrimRight(p.opts.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(p.opts.Endpoint, "/") + "/" + p.opts.Bucket
	}
	return base + "/" + key
}

// ObjectKey 生成附件对象键：attachments/<task_id>/<random>/<file_name>。
func ObjectKey(taskID, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return path.Join("attachments", taskID, strings.ReplaceAll(uuid.NewString(), "-", ""), name)
}
