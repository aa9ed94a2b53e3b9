package config

import (
	"encoding/json"
	"os"

	"github.com/sfstore/sfs/internal/flagx"
	"github.com/sfstore/sfs/internal/timex"
)

// JsonConfig is the DTO for the optional JSON configuration file. Duration
// fields use timex.Duration so both "30s" strings and integer nanoseconds
// parse. After unmarshalling, values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP  string         `json:"endpoint_addr_http"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	StepTimeout       timex.Duration `json:"step_timeout"`
	AuditInterval     timex.Duration `json:"audit_interval"`
	OrphanGracePeriod timex.Duration `json:"orphan_grace_period"`
	AuditRetryMax     uint64         `json:"audit_retry_max"`
}

// parseJson overlays values from the JSON file named by -c/-config, if any.
// A missing flag means no file is loaded; an unreadable or invalid file
// panics, since starting with half a config is worse than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.StepTimeout = c.StepTimeout.Duration
	config.AuditInterval = c.AuditInterval.Duration
	config.OrphanGracePeriod = c.OrphanGracePeriod.Duration
	config.AuditRetryMax = c.AuditRetryMax
}
