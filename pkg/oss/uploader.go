package oss

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

type Config struct {
	Region          string
	Bucket          string
	AccessKeyId     string
	AccessKeySecret string
	Prefix          string
	// PublicBaseUrl replaces the default bucket endpoint in returned links.
	PublicBaseUrl string
}

type objectPutter interface {
	PutObject(ctx context.Context, request *oss.PutObjectRequest, optFns ...func(*oss.Options)) (*oss.PutObjectResult, error)
}

// Uploader mirrors finished clips to an OSS bucket.
type Uploader struct {
	client objectPutter
	cfg    Config
}

func NewUploader(cfg Config) *Uploader {
	ossCfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.AccessKeySecret)).
		WithRegion(cfg.Region)
	return &Uploader{client: oss.NewClient(ossCfg), cfg: cfg}
}

// Upload stores the file under prefix/name and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := u.key(name)
	_, err = u.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket:      oss.Ptr(u.cfg.Bucket),
		Key:         oss.Ptr(key),
		ContentType: oss.Ptr("video/mp4"),
		Body:        f,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.publicURL(key), nil
}

func (u *Uploader) key(name string) string {
	prefix := strings.Trim(u.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (u *Uploader) publicURL(key string) string {
	if base := strings.TrimRight(u.cfg.PublicBaseUrl, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("https://%s.oss-%s.aliyuncs.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}
