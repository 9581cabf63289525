package config

import (
	"encoding/json"
	"os"

	"github.com/duncanmcclean/guest-entries/internal/flagx"
	"github.com/duncanmcclean/guest-entries/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "5s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP               string          `json:"endpoint_addr_http"`
	RoutePrefix                    string          `json:"route_prefix"`
	DatabaseDSN                    string          `json:"database_dsn"`
	SecretKey                      string          `json:"secret_key"`
	ContentModelPath               string          `json:"content_model_path"`
	S3RootUser                     string          `json:"s3_root_user"`
	S3RootPassword                 string          `json:"s3_root_password"`
	S3Bucket                       string          `json:"s3_bucket"`
	S3Region                       string          `json:"s3_region"`
	S3BaseEndpoint                 string          `json:"s3_base_endpoint"`
	LocalStorageRoot               string          `json:"local_storage_root"`
	ReadHeaderTimeout              timex.Duration  `json:"read_header_timeout"`
	MaxUploadBytes                 int64           `json:"max_upload_bytes"`
	LogLevel                       string          `json:"log_level"`
	Collections                    map[string]bool `json:"collections"`
	Honeypot                       string          `json:"honeypot"`
	DisableFormParameterValidation bool            `json:"disable_form_parameter_validation"`
	RevisionsEnabled               bool            `json:"revisions_enabled"`
	AllowedExtensions              []string        `json:"allowed_extensions"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Keys missing from the file keep their current values. An unreadable or
// malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrHTTP:               config.EndpointAddrHTTP,
		RoutePrefix:                    config.RoutePrefix,
		DatabaseDSN:                    config.DatabaseDSN,
		SecretKey:                      config.SecretKey,
		ContentModelPath:               config.ContentModelPath,
		S3RootUser:                     config.S3RootUser,
		S3RootPassword:                 config.S3RootPassword,
		S3Bucket:                       config.S3Bucket,
		S3Region:                       config.S3Region,
		S3BaseEndpoint:                 config.S3BaseEndpoint,
		LocalStorageRoot:               config.LocalStorageRoot,
		ReadHeaderTimeout:              timex.Duration{Duration: config.ReadHeaderTimeout},
		MaxUploadBytes:                 config.MaxUploadBytes,
		LogLevel:                       config.LogLevel,
		Collections:                    config.Collections,
		Honeypot:                       config.Honeypot,
		DisableFormParameterValidation: config.DisableFormParameterValidation,
		RevisionsEnabled:               config.RevisionsEnabled,
		AllowedExtensions:              config.AllowedExtensions,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.RoutePrefix = c.RoutePrefix
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.ContentModelPath = c.ContentModelPath
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.LocalStorageRoot = c.LocalStorageRoot
	config.ReadHeaderTimeout = c.ReadHeaderTimeout.Duration
	config.MaxUploadBytes = c.MaxUploadBytes
	config.LogLevel = c.LogLevel
	config.Collections = c.Collections
	config.Honeypot = c.Honeypot
	config.DisableFormParameterValidation = c.DisableFormParameterValidation
	config.RevisionsEnabled = c.RevisionsEnabled
	config.AllowedExtensions = c.AllowedExtensions
}
