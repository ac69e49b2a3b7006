package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeGetter struct {
	objects map[string][]byte
	gotKey  string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Key)
	data, ok := f.objects[f.gotKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestFetchObject(t *testing.T) {
	fake := &fakeGetter{objects: map[string][]byte{"catalog/gamification.yaml": []byte("levels: []")}}
	store := NewR2StoreWithClient(fake, "configs")

	data, err := store.FetchObject(context.Background(), "catalog/gamification.yaml")
	if err != nil {
		t.Fatalf("FetchObject: %v", err)
	}
	if string(data) != "levels: []" {
		t.Fatalf("data = %q", data)
	}
	if fake.gotKey != "catalog/gamification.yaml" {
		t.Fatalf("key = %q", fake.gotKey)
	}
}

func TestFetchObjectMissing(t *testing.T) {
	store := NewR2StoreWithClient(&fakeGetter{}, "configs")
	if _, err := store.FetchObject(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for a missing key")
	}
}
