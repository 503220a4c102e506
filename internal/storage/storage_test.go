package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key := NewKey("audio/", ".mp3")
	assert.Regexp(t, regexp.MustCompile(`^audio/[0-9A-HJKMNP-TV-Z]{26}\.mp3$`), key)
	assert.NotEqual(t, key, NewKey("audio", "mp3"))
	assert.Regexp(t, `^[0-9A-Z]{26}$`, NewKey("", ""))
}

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store := &LocalStore{Dir: dir}
	src := writeArtifact(t, "ID3 data")

	loc, err := store.Save(context.Background(), "audio/a.mp3", src, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio", "a.mp3"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "ID3 data", string(got))
}

func TestLocalStoreKeepsKeysInside(t *testing.T) {
	dir := t.TempDir()
	store := &LocalStore{Dir: dir}
	src := writeArtifact(t, "x")

	loc, err := store.Save(context.Background(), "../../escape.mp3", src, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.mp3"), loc)

	_, err = store.Save(context.Background(), "/", src, "audio/mpeg")
	assert.Error(t, err)
}

func TestLocalStoreMissingSource(t *testing.T) {
	store := &LocalStore{Dir: t.TempDir()}
	_, err := store.Save(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "nope"), "audio/mpeg")
	assert.ErrorContains(t, err, "open artifact")
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	store := NewS3Store(client, "voices", "https://cdn.example.com/")
	src := writeArtifact(t, "RIFF")

	loc, err := store.Save(context.Background(), "audio/x.wav", src, "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio/x.wav", loc)
	assert.Equal(t, "voices", aws.ToString(client.input.Bucket))
	assert.Equal(t, "audio/x.wav", aws.ToString(client.input.Key))
	assert.Equal(t, "audio/wav", aws.ToString(client.input.ContentType))
	assert.EqualValues(t, 4, aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, "RIFF", string(client.body))

	loc, err = NewS3Store(client, "voices", "").Save(context.Background(), "k.mp3", src, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "s3://voices/k.mp3", loc)
}

func TestS3StoreError(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	_, err := NewS3Store(client, "b", "").Save(context.Background(), "k", writeArtifact(t, "x"), "audio/mpeg")
	assert.ErrorContains(t, err, "upload to s3: access denied")
}
