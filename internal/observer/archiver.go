package observer

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/events"
	"github.com/driftsync/driftsync/internal/logging"
	gosync "github.com/driftsync/driftsync/internal/sync"
)

// ArchiverConfig holds S3 mirror settings.
type ArchiverConfig struct {
	Bucket    string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// Archiver mirrors every finalized upload into an S3 bucket. The mirror is
// best-effort: a failed put is logged, never surfaced to the session, so an
// unreachable bucket cannot fail a sync.
type Archiver struct {
	client *s3.Client
	svc    *gosync.Service
	cfg    ArchiverConfig
	queue  *events.Queue[string]
	done   chan struct{}
}

// NewArchiver builds the S3 client and subscribes on bus. Uploads are
// mirrored from a background goroutine so bus dispatch never blocks on the
// network.
func NewArchiver(ctx context.Context, cfg ArchiverConfig, bus *events.Bus, svc *gosync.Service) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	a := &Archiver{
		client: client,
		svc:    svc,
		cfg:    cfg,
		queue:  events.NewQueue[string](),
		done:   make(chan struct{}),
	}

	events.Subscribe(bus, func(e events.FileUploadCompleted) {
		a.queue.Push(e.FilePath)
	})

	go a.run(ctx)
	return a, nil
}

func (a *Archiver) run(ctx context.Context) {
	defer close(a.done)
	for {
		path, ok := a.queue.Pop()
		if !ok {
			return
		}
		a.mirror(ctx, path)
	}
}

func (a *Archiver) mirror(ctx context.Context, path string) {
	data, err := a.svc.ReadFile(path)
	if err != nil {
		logging.Error("mirror read failed", zap.String("path", path), zap.Error(err))
		return
	}

	key := a.cfg.Prefix + path
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		logging.Error("mirror put failed",
			zap.String("path", path),
			zap.String("bucket", a.cfg.Bucket),
			zap.Error(err))
		return
	}
	logging.Debug("mirrored object",
		zap.String("path", path),
		zap.String("key", key))
}

// Close stops the mirror goroutine after the queue drains its waiters.
func (a *Archiver) Close() {
	a.queue.Shutdown()
	<-a.done
}
