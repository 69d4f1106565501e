package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AudioStore persists generated audio and hands back a playback URL.
type AudioStore interface {
	// Store uploads the MP3 under the given key and returns a short-lived
	// presigned URL for it.
	Store(ctx context.Context, key string, audio []byte) (string, error)
}

type s3AudioStore struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
}

// NewS3AudioStore creates an AudioStore over an S3-compatible bucket
// (Supabase storage in production).
func NewS3AudioStore(client *s3.Client, bucketName string) AudioStore {
	return &s3AudioStore{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    bucketName,
	}
}

func (s *s3AudioStore) Store(ctx context.Context, key string, audio []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String("audio/mpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading audio object %s: %w", key, err)
	}

	presigned, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presigning audio object %s: %w", key, err)
	}
	return presigned.URL, nil
}
