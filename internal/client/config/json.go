package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
	"github.com/dmitrijs2005/inspectsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell "absent" apart from "empty".
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	HealthAddr          *string         `json:"health_addr"`
	DataDir             *string         `json:"data_dir"`
	DBPath              *string         `json:"db_path"`
	FilesDir            *string         `json:"files_dir"`
	ExportsDir          *string         `json:"exports_dir"`
	LogFile             *string         `json:"log_file"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c/-config. It panics on read
// or decode errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.HealthAddr, jc.HealthAddr)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.FilesDir, jc.FilesDir)
	setString(&cfg.ExportsDir, jc.ExportsDir)
	setString(&cfg.LogFile, jc.LogFile)
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
