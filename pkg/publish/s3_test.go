package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	fail    bool
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = string(body)
	if in.ContentType != nil {
		f.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func runDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "animal_rel.csv"), []byte(",id_animal\n0,47\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra", "notes.txt"), []byte("hi"), 0o644))
	return dir
}

func TestPublishDir(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	p := NewWithClient(fake, "clinic", "runs/56", nil)

	keys, err := p.PublishDir(context.Background(), runDir(t))
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"runs/56/animal_rel.csv", "runs/56/extra/notes.txt", "runs/56/report.json"}, keys)
	assert.Equal(t, ",id_animal\n0,47\n", fake.objects["clinic/runs/56/animal_rel.csv"])
	assert.Equal(t, "text/csv", fake.types["runs/56/animal_rel.csv"])
}

func TestPublishDirError(t *testing.T) {
	p := NewWithClient(&fakeS3{fail: true}, "clinic", "", nil)
	_, err := p.PublishDir(context.Background(), runDir(t))
	assert.ErrorContains(t, err, "access denied")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), config.S3Config{}, nil)
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestNewWithStaticCredentials(t *testing.T) {
	p, err := New(context.Background(), config.S3Config{
		Bucket:          "clinic",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a/b.csv", p.Key("a/b.csv"))
}
