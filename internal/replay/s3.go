package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// S3Options selects region, credentials and endpoint for archive downloads
type S3Options struct {
	Region          string
	RoleARN         string // IAM role assumed with an OIDC token
	TokenSocket     string // Unix socket serving OIDC tokens
	AccessKeyID     string // Static credentials
	SecretAccessKey string
	Endpoint        string // For S3-compatible services
}

// ObjectGetter is the part of the S3 client the replayer needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// oidcTokenRetriever implements stscreds.IdentityTokenRetriever over a Unix socket token API
type oidcTokenRetriever struct {
	socketPath string
	audience   string
}

// GetIdentityToken fetches an OIDC token from the socket API
func (f *oidcTokenRetriever) GetIdentityToken() ([]byte, error) {
	// Create HTTP client with Unix socket transport
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", f.socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}

	// Prepare request body
	reqBody, err := json.Marshal(map[string]string{
		"aud": f.audience,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Make POST request to the token API
	resp, err := client.Post("http://localhost/v1/tokens/oidc", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Read and return token
	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	return token, nil
}

// NewS3Client builds an S3 client. A role ARN wins over static credentials,
// which win over the default AWS credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	// Static credentials only apply when no role is assumed
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.RoleARN == "" && opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	// Load AWS config
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// If roleARN is provided, assume role using OIDC credentials
	if opts.RoleARN != "" {
		socket := opts.TokenSocket
		if socket == "" {
			socket = "/.fly/api"
		}
		// Create credentials provider that assumes role with web identity, via a new STS client
		credProvider := stscreds.NewWebIdentityRoleProvider(
			sts.NewFromConfig(cfg),
			opts.RoleARN,
			&oidcTokenRetriever{socketPath: socket, audience: "sts.amazonaws.com"},
		)
		// Update config with new credentials
		cfg.Credentials = aws.NewCredentialsCache(credProvider)
	}

	// Create S3 client
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Opener downloads the archive at bucket/key
func S3Opener(client ObjectGetter, bucket, key string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(ArchiveKey(key)),
		})
		if err != nil {
			return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
		}
		return out.Body, nil
	}
}

// ArchiveKey expands a bare archive filename into the dated archive layout.
// Input: twitch_ludwig_20251230_1030.jsonl
// Output: 2025/12/30/twitch/ludwig/twitch_ludwig_20251230_1030.jsonl
// Keys that already contain a path, or do not follow the naming scheme, are returned unchanged.
func ArchiveKey(key string) string {
	if strings.Contains(key, "/") || path.Ext(key) != ".jsonl" {
		return key
	}

	// Parse filename: platform_channel_YYYYMMDD_HHMM
	parts := strings.Split(strings.TrimSuffix(key, ".jsonl"), "_")
	if len(parts) < 4 {
		return key
	}

	platform := parts[0]
	// Channel names may contain underscores, so date and time are parsed from the end
	dateStr := parts[len(parts)-2] // YYYYMMDD
	timeStr := parts[len(parts)-1] // HHMM
	channel := strings.Join(parts[1:len(parts)-2], "_")

	t, err := time.Parse("20060102_1504", dateStr+"_"+timeStr)
	if err != nil {
		return key
	}

	// Generate S3 key
	return fmt.Sprintf("%04d/%02d/%02d/%s/%s/%s",
		t.Year(), t.Month(), t.Day(), platform, channel, key)
}
