package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/creative-optimizer/internal/datanorm"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
)

// S3API is the subset of the S3 client the CSV source uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3CSV reads every performance CSV under a bucket prefix.
type S3CSV struct {
	client S3API
	bucket string
	prefix string
}

// NewS3CSV creates an S3 CSV source.
func NewS3CSV(client S3API, bucket, prefix string) *S3CSV {
	return &S3CSV{client: client, bucket: bucket, prefix: prefix}
}

// Name implements Source.
func (s *S3CSV) Name() string { return "s3://" + s.bucket + "/" + s.prefix }

// Fetch implements Source. Objects are read in key order; files classified
// as summaries or unrelated exports are skipped.
func (s *S3CSV) Fetch(ctx context.Context) ([]datanorm.RawRow, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.EqualFold(path.Ext(key), ".csv") {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	rows := []datanorm.RawRow{}
	for _, key := range keys {
		fileRows, err := s.readObject(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(fileRows) == 0 {
			continue
		}
		header := make([]string, 0, len(fileRows[0]))
		for col := range fileRows[0] {
			header = append(header, col)
		}
		if class := datanorm.Classify(key, header); class != datanorm.ClassPerformance {
			logger.Info("skipping non-performance export", "key", key, "class", string(class))
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

func (s *S3CSV) readObject(ctx context.Context, key string) ([]datanorm.RawRow, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	rows, skipped, err := datanorm.ReadCSV(io.Reader(out.Body))
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed csv lines", "key", key, "lines", skipped)
	}
	return rows, nil
}
