package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	pages   [][]string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body := f.objects[aws.ToString(in.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3CSV_Fetch(t *testing.T) {
	client := &fakeS3{
		objects: map[string]string{
			"exports/b.csv":            "ad_id,spend,impressions\nad-2,5,500\n",
			"exports/a.csv":            "Ad ID,Amount spent (USD),Impressions\nad-1,10,1000\n",
			"exports/summary.csv":      "Campaign name,Amount spent (USD)\nspring,100\n",
			"exports/notes.txt":        "ignored",
			"exports/creative_map.csv": "creative,hook\nc1,question\n",
		},
		pages: [][]string{
			{"exports/b.csv", "exports/notes.txt", "exports/summary.csv"},
			{"exports/a.csv", "exports/creative_map.csv"},
		},
	}

	rows, err := NewS3CSV(client, "bucket", "exports/").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ad-1", rows[0]["Ad ID"])
	assert.Equal(t, "ad-2", rows[1]["ad_id"])
}

func TestS3CSV_Name(t *testing.T) {
	assert.Equal(t, "s3://bucket/exports/", NewS3CSV(&fakeS3{}, "bucket", "exports/").Name())
}
