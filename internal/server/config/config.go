// Package config handles configuration for the guest-entries server,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// DefaultAllowedExtensions lists the upload types accepted when neither the
// config file nor a field narrows the set. Markup formats other than SVG
// are deliberately absent.
var DefaultAllowedExtensions = []string{
	"avif", "bmp", "gif", "jpeg", "jpg", "png", "svg", "tif", "tiff", "webp",
	"csv", "doc", "docx", "odt", "pdf", "ppt", "pptx", "rtf", "txt", "xls", "xlsx",
	"m4a", "mp3", "ogg", "wav",
	"m4v", "mov", "mp4", "webm",
}

// Config holds runtime settings for the guest-entries server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - RoutePrefix: path prefix the form actions are mounted under.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - SecretKey: secret the form parameter seal key is derived from.
//   - ContentModelPath: YAML file declaring collections, blueprints, sites,
//     asset containers and validators.
//   - S3RootUser / S3RootPassword / S3Bucket / S3Region / S3BaseEndpoint:
//     object storage settings. An empty bucket disables the "s3" disk.
//   - LocalStorageRoot: directory backing the "local" disk.
//   - Collections: collection handle => guest submissions allowed.
//   - Honeypot: decoy field name; empty disables the check.
//   - DisableFormParameterValidation: accept hidden parameters in cleartext.
//   - RevisionsEnabled: route updates through revisions for collections
//     that opt in.
type Config struct {
	EndpointAddrHTTP               string
	RoutePrefix                    string
	DatabaseDSN                    string
	SecretKey                      string
	ContentModelPath               string
	S3RootUser                     string
	S3RootPassword                 string
	S3Bucket                       string
	S3Region                       string
	S3BaseEndpoint                 string
	LocalStorageRoot               string
	ReadHeaderTimeout              time.Duration
	MaxUploadBytes                 int64
	LogLevel                       string
	Collections                    map[string]bool
	Honeypot                       string
	DisableFormParameterValidation bool
	RevisionsEnabled               bool
	AllowedExtensions              []string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.RoutePrefix = "/!/guest-entries"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.ContentModelPath = "content.yaml"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.LocalStorageRoot = "storage"
	c.ReadHeaderTimeout = 5 * time.Second
	c.MaxUploadBytes = 32 << 20
	c.LogLevel = "info"
	c.Collections = map[string]bool{}
	c.Honeypot = ""
	c.DisableFormParameterValidation = false
	c.RevisionsEnabled = false
	c.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
