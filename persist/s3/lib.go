package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/hashicorp/golang-lru/simplelru"
)

// DefaultSeenSize is how many object names a Persist remembers as present.
const DefaultSeenSize = 1000

type S3Interface interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Persist implements the pst.Persist interface for storing and loading
// tree nodes as S3 objects. It is safe for the concurrent stores of
// pst.Tree.Save.
type Persist struct {
	s3         S3Interface
	BucketName string
	Prefix     string

	mu   sync.Mutex
	seen *simplelru.LRU
}

// Load loads the bytes persisted in the named object.
func (p *Persist) Load(ctx context.Context, name string) ([]byte, error) {
	input := s3.GetObjectInput{
		Bucket: &p.BucketName,
		Key:    aws.String(p.Prefix + name),
	}
	output, err := p.s3.GetObjectWithContext(ctx, &input)
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s%s: %w", p.BucketName, p.Prefix, name, err)
	}
	defer output.Body.Close()
	b, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s%s: %w", p.BucketName, p.Prefix, name, err)
	}
	p.markSeen(name)
	return b, nil
}

// Store persists the given bytes in an object of the given name, unless
// it is known to exist already.
func (p *Persist) Store(ctx context.Context, name string, b []byte) error {
	p.mu.Lock()
	_, present := p.seen.Get(name)
	p.mu.Unlock()
	if present {
		return nil
	}
	input := s3.PutObjectInput{
		Bucket: &p.BucketName,
		Key:    aws.String(p.Prefix + name),
		Body:   bytes.NewReader(b),
	}
	_, err := p.s3.PutObjectWithContext(ctx, &input)
	if err != nil {
		return fmt.Errorf("put s3://%s/%s%s: %w", p.BucketName, p.Prefix, name, err)
	}
	p.markSeen(name)
	return nil
}

func (p *Persist) markSeen(name string) {
	p.mu.Lock()
	p.seen.Add(name, nil)
	p.mu.Unlock()
}

// NewPersist returns a Persist that loads and stores nodes as
// objects with the given S3 client, bucket name and key prefix.
func NewPersist(client S3Interface, bucketName, prefix string) *Persist {
	seen, err := simplelru.NewLRU(DefaultSeenSize, nil)
	if err != nil {
		panic(err)
	}
	return &Persist{s3: client, BucketName: bucketName, Prefix: prefix, seen: seen}
}
