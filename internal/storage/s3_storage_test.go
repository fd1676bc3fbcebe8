package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveSplitReport(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Storage{client: putter, bucket: "reports", region: "ap-northeast-2"}

	url, err := store.ArchiveSplitReport(context.Background(), 15, []byte("xlsx-bytes"))
	require.NoError(t, err)

	key := aws.ToString(putter.input.Key)
	assert.True(t, strings.HasPrefix(key, "split-reports/15/"))
	assert.True(t, strings.HasSuffix(key, ".xlsx"))
	assert.Equal(t, "reports", aws.ToString(putter.input.Bucket))
	assert.Equal(t, xlsxContentType, aws.ToString(putter.input.ContentType))
	assert.Equal(t, "xlsx-bytes", string(putter.body))
	assert.Equal(t, "https://reports.s3.ap-northeast-2.amazonaws.com/"+key, url)
}

func TestArchiveSplitReport_BaseURL(t *testing.T) {
	putter := &fakePutter{}
	store := &S3Storage{client: putter, bucket: "reports", baseURL: "https://cdn.example.com"}

	url, err := store.ArchiveSplitReport(context.Background(), 1, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+aws.ToString(putter.input.Key), url)
}

func TestArchiveSplitReport_UploadError(t *testing.T) {
	store := &S3Storage{client: &fakePutter{err: errors.New("access denied")}, bucket: "reports"}

	_, err := store.ArchiveSplitReport(context.Background(), 1, []byte("x"))
	assert.ErrorContains(t, err, "access denied")
}
