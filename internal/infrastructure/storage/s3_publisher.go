// Package storage 对象存储发布
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
	"ideaforge-api/pkg/tracer"
)

const defaultContentType = "text/plain"

var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
}

// ContentTypeFor 按扩展名推断内容类型，未知扩展名回落到 text/plain
func ContentTypeFor(filePath string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(filePath))]; ok {
		return ct
	}
	return defaultContentType
}

// ObjectPutter S3 PutObject 的最小接口
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher 将代码文件上传到 {slug}/{path}
type S3Publisher struct {
	client ObjectPutter
	cfg    config.S3Config
}

// NewS3Publisher 使用给定客户端创建发布器
func NewS3Publisher(client ObjectPutter, cfg config.S3Config) *S3Publisher {
	if cfg.WebsiteScheme == "" {
		cfg.WebsiteScheme = "http"
	}
	if cfg.WebsiteEndpoint == "" {
		cfg.WebsiteEndpoint = fmt.Sprintf("s3-website-%s.amazonaws.com", cfg.Region)
	}
	return &S3Publisher{client: client, cfg: cfg}
}

// NewS3Client 按配置创建 S3 客户端；配置了静态密钥时优先使用
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectKey 返回文件在桶中的键
func ObjectKey(slug, filePath string) string {
	return slug + "/" + strings.TrimPrefix(filePath, "/")
}

// PreviewURL 返回项目的公开预览地址
func (p *S3Publisher) PreviewURL(slug string) string {
	return fmt.Sprintf("%s://%s.%s/%s", p.cfg.WebsiteScheme, p.cfg.Bucket, p.cfg.WebsiteEndpoint, slug)
}

// Publish 逐个上传文件，任一文件失败即中止
func (p *S3Publisher) Publish(ctx context.Context, slug string, files entity.CodeFiles) (string, error) {
	ctx, span := tracer.Start(ctx, "storage.S3Publisher.Publish", trace.WithAttributes(
		attribute.String("s3.bucket", p.cfg.Bucket),
		attribute.String("project.slug", slug),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	paths := files.Paths()
	for i, filePath := range paths {
		key := ObjectKey(slug, filePath)
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.Bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(files[filePath]),
			ContentType: aws.String(ContentTypeFor(filePath)),
		})
		if err != nil {
			tracer.RecordError(span, err)
			metrics.PublishedFiles.WithLabelValues("storage", "failed").Inc()
			return "", fmt.Errorf("upload %s (%d of %d): %w", key, i+1, len(paths), err)
		}
		metrics.PublishedFiles.WithLabelValues("storage", "success").Inc()
	}

	url := p.PreviewURL(slug)
	logger.Info(ctx, "project uploaded to object storage", "files", len(paths), "preview_url", url)
	return url, nil
}
