package config

import (
	"fmt"
	"os"
)

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(daemonTemplate), 0o600)
}

const daemonTemplate = `name = "codewired"
network = "tcp"
addr = ":9400"
admin_addr = ":9401"
# admin_token guards /metrics and /sessions when set
# admin_token = "change-me"
cors_origins = ["http://localhost:3000"]
log_level = "info"

[wire]
max_payload_bytes = 16777216
max_array_items = 1048576
max_array_depth = 4096
event_buffer = 16
`
