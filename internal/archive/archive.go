// Package archive is the optional completed-job sink named in SPEC_FULL's
// supplemented features: when enabled it persists the final AnalysisResult
// JSON alongside a scaled-down representative frame. The local/S3 dual
// uploader split is carried over directly from the teacher's
// internal/worker/image_handler.go.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/image/draw"

	"videoscan/internal/model"
)

const thumbnailWidth = 160

type uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Config configures where completed results land. Destination "none" (the
// zero value) disables archival entirely.
type Config struct {
	Destination string // "none" | "local" | "s3"
	LocalDir    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Sink implements orchestrator.ArchiveSink.
type Sink struct {
	dest   string
	upload uploader
}

// New returns a nil *Sink when the destination is "none"; cmd/server checks
// for that and passes a nil ArchiveSink interface to the orchestrator.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	switch strings.ToLower(cfg.Destination) {
	case "", "none":
		return nil, nil
	case "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "./archive"
		}
		return &Sink{dest: "local", upload: &localUploader{baseDir: dir}}, nil
	case "s3":
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("configure s3 archive: %w", err)
		}
		return &Sink{dest: "s3", upload: &s3Uploader{client: client, bucket: cfg.S3Bucket}}, nil
	default:
		return nil, fmt.Errorf("unknown archive destination %q", cfg.Destination)
	}
}

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.S3Endpoint,
					HostnameImmutable: cfg.S3PathStyle,
					SigningRegion:     cfg.S3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3PathStyle
	}), nil
}

// Archive uploads result.json and, when representativeFrame is non-empty,
// a downscaled JPEG thumbnail of it, both keyed by the job ID.
func (s *Sink) Archive(ctx context.Context, result model.AnalysisResult, representativeFrame string) error {
	prefix := fmt.Sprintf("%s/%d", result.JobID, time.Now().Unix())

	body, err := marshalResult(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := s.upload.Upload(ctx, prefix+"/result.json", body, "application/json"); err != nil {
		return fmt.Errorf("upload result: %w", err)
	}

	if representativeFrame == "" {
		return nil
	}
	thumb, err := makeThumbnail(representativeFrame)
	if err != nil {
		return fmt.Errorf("make thumbnail: %w", err)
	}
	if _, err := s.upload.Upload(ctx, prefix+"/thumbnail.jpg", thumb, "image/jpeg"); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}
	return nil
}

func marshalResult(result model.AnalysisResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func makeThumbnail(framePath string) ([]byte, error) {
	f, err := os.Open(framePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := jpeg.Decode(f)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 {
		return nil, fmt.Errorf("zero-width frame")
	}
	height := bounds.Dy() * thumbnailWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, thumbnailWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

type localUploader struct {
	baseDir string
}

func (l *localUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, sanitizeKey(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(sanitizeKey(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
