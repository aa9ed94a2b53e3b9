package config

import (
	"flag"
	"os"
	"time"

	"github.com/sfstore/sfs/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   bearer-token HMAC secret (empty disables auth)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t int      per-step backend timeout, seconds
//	-i int      audit interval, minutes (0 disables the background auditor)
//	-o int      orphan grace period, minutes
//	-r uint     audit retry attempts for transient listing failures
//
// Arguments are filtered through flagx.FilterArgs first so flags owned by
// other packages (such as -c/-config) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-t", "-i", "-o", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	stepTimeout := fs.Int("t", int(config.StepTimeout.Seconds()), "per-step backend timeout (in seconds)")
	auditInterval := fs.Int("i", int(config.AuditInterval.Minutes()), "audit interval (in minutes)")
	orphanGrace := fs.Int("o", int(config.OrphanGracePeriod.Minutes()), "orphan grace period (in minutes)")
	fs.Uint64Var(&config.AuditRetryMax, "r", config.AuditRetryMax, "audit retry attempts")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.StepTimeout = time.Duration(*stepTimeout) * time.Second
	config.AuditInterval = time.Duration(*auditInterval) * time.Minute
	config.OrphanGracePeriod = time.Duration(*orphanGrace) * time.Minute
}
