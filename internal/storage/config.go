package storage

import "github.com/thriftkids/marketplace/internal/config"

// MinIOConfig holds the S3-compatible connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicBaseURL overrides the host used in public object URLs
	// (e.g. a CDN in front of the bucket).
	PublicBaseURL string
}

// MinIOConfigFrom extracts the object store settings from the app config.
func MinIOConfigFrom(cfg config.StorageConfig) *MinIOConfig {
	return &MinIOConfig{
		Endpoint:      cfg.Endpoint,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		UseSSL:        cfg.UseSSL,
		Bucket:        cfg.Bucket,
		PublicBaseURL: cfg.PublicBaseURL,
	}
}

// Configured reports whether both an endpoint and a destination bucket are set.
func (c *MinIOConfig) Configured() bool {
	return c != nil && c.Endpoint != "" && c.Bucket != ""
}
