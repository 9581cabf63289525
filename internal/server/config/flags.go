package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/flagx"
)

var (
	serverFlags     = []string{"-a", "-d", "-s", "-m", "-u", "-p", "-b", "-g", "-e", "-l", "-t", "-r", "-hp", "-log", "-collections"}
	serverBoolFlags = []string{"-revisions", "-insecure"}
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN; empty keeps the in-memory store
//	-s string   form parameter seal secret
//	-m string   content model YAML path
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   local disk root directory
//	-t int      read header timeout, seconds
//	-r string   route prefix for the form actions
//	-hp string  honeypot field name
//	-log string log level (debug, info, warn, error)
//	-collections string
//	            comma separated collections open to guests; replaces the
//	            configured set
//	-revisions  route updates through revisions
//	-insecure   accept hidden form parameters in clear text
//
// os.Args is filtered with flagx.FilterArgs first so -c/-config and any
// unrelated flags do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.Filter(os.Args[1:], serverFlags, serverBoolFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.ContentModelPath, "m", config.ContentModelPath, "content model file")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.LocalStorageRoot, "l", config.LocalStorageRoot, "local storage root")
	fs.StringVar(&config.RoutePrefix, "r", config.RoutePrefix, "route prefix")
	fs.StringVar(&config.Honeypot, "hp", config.Honeypot, "honeypot field")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level")
	fs.Func("collections", "comma separated collections open to guests", func(v string) error {
		config.Collections = map[string]bool{}
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				config.Collections[h] = true
			}
		}
		return nil
	})
	fs.BoolVar(&config.RevisionsEnabled, "revisions", config.RevisionsEnabled, "enable revisions")
	fs.BoolVar(&config.DisableFormParameterValidation, "insecure", config.DisableFormParameterValidation, "disable form parameter sealing")

	readHeaderTimeout := fs.Int("t", int(config.ReadHeaderTimeout.Seconds()), "read header timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ReadHeaderTimeout = time.Duration(*readHeaderTimeout) * time.Second
}
