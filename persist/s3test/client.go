// Package s3test provides S3 clients for tests of S3-backed node stores.
package s3test

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// Client returns an S3 client, a bucket to use, and a func that releases
// both. It talks to the endpoint in PSTREE_TEST_S3_ENDPOINT when set, and
// to an in-process gofakes3 server otherwise. A bucket named by
// PSTREE_TEST_S3_BUCKET is emptied and reused; otherwise a fresh bucket is
// created and removed on close.
func Client() (*s3.S3, string, func()) {
	var client *s3.S3
	closer := func() {}
	if endpoint := os.Getenv("PSTREE_TEST_S3_ENDPOINT"); endpoint != "" {
		config := aws.Config{
			Credentials: credentials.NewStaticCredentials(
				requiredEnv("AWS_ACCESS_KEY_ID"),
				requiredEnv("AWS_SECRET_ACCESS_KEY"),
				os.Getenv("AWS_SESSION_TOKEN"),
			),
			Endpoint:         aws.String(endpoint),
			S3ForcePathStyle: aws.Bool(true),
		}
		// with a real AWS region the SDK resolves the endpoint itself
		if region := os.Getenv("AWS_REGION"); region != "" {
			config.Region = aws.String(region)
			config.Endpoint = nil
		} else {
			config.Region = aws.String("local")
		}

		sess, err := session.NewSession(&config)
		if err != nil {
			panic(err)
		}
		client = s3.New(sess)
	} else {
		faker := gofakes3.New(s3mem.New())
		ts := httptest.NewServer(faker.Server())
		closer = ts.Close

		sess, err := session.NewSession(&aws.Config{
			Credentials: credentials.NewStaticCredentials(
				"TEST-ACCESSKEYID",
				"TEST-SECRETACCESSKEY",
				"",
			),
			Endpoint:         aws.String(ts.URL),
			Region:           aws.String("ca-west-1"),
			DisableSSL:       aws.Bool(true),
			S3ForcePathStyle: aws.Bool(true),
		})
		if err != nil {
			panic(err)
		}
		client = s3.New(sess)
	}

	bucketName := os.Getenv("PSTREE_TEST_S3_BUCKET")
	created := false
	if bucketName != "" {
		if err := clearBucket(client, bucketName); err != nil {
			panic(err)
		}
	} else {
		bucketName = scratchBucketName()
		_, err := client.CreateBucket(&s3.CreateBucketInput{
			Bucket: &bucketName,
		})
		if err != nil {
			panic(err)
		}
		created = true
	}

	stopServer := closer
	closer = func() {
		_ = clearBucket(client, bucketName)
		if created {
			_, _ = client.DeleteBucket(&s3.DeleteBucketInput{
				Bucket: &bucketName,
			})
		}
		stopServer()
	}

	return client, bucketName, closer
}

func requiredEnv(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	panic(fmt.Sprintf("PSTREE_TEST_S3_ENDPOINT is set but %s is not", key))
}

func scratchBucketName() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return "pstree-test-" + hex.EncodeToString(b[:])
}

// clearBucket deletes one listing page of objects, which covers every
// bucket the tests fill.
func clearBucket(client *s3.S3, bucket string) error {
	listed, err := client.ListObjectsV2(&s3.ListObjectsV2Input{Bucket: &bucket})
	if err != nil {
		return err
	}
	if len(listed.Contents) == 0 {
		return nil
	}
	objects := make([]*s3.ObjectIdentifier, len(listed.Contents))
	for i, object := range listed.Contents {
		objects[i] = &s3.ObjectIdentifier{Key: object.Key}
	}
	_, err = client.DeleteObjects(&s3.DeleteObjectsInput{
		Bucket: &bucket,
		Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	return err
}
