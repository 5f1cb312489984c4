// Package config loads runtime configuration for the field client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string   base url of the sync backend REST api
//	-g string   host:port of the backend gRPC health endpoint
//	-d string   data directory (database, attachments, exports, log)
//	-l string   log file path
//	-i int      online check interval (seconds)
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations accept strings like "10s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://sync.example.com",
//	  "health_addr": "sync.example.com:50051",
//	  "data_dir": "/var/lib/inspectsync",
//	  "online_check_interval": "10s",
//	  "request_timeout": "30s"
//	}
//
// Keys missing from the file keep their previous value.
package config
