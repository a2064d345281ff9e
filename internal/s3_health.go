package internal

import (
	"fmt"

	"github.com/lychee-technology/apischema"
)

// ValidateArchiveConfig performs basic sanity checks on the archive settings.
func ValidateArchiveConfig(cfg apischema.ArchiveConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when the archive is enabled")
	}
	if cfg.Region == "" {
		return fmt.Errorf("archive.region is required")
	}
	if cfg.AccessKey != "" && cfg.SecretKey == "" {
		return fmt.Errorf("archive.accessKey provided without archive.secretKey")
	}
	if cfg.SecretKey != "" && cfg.AccessKey == "" {
		return fmt.Errorf("archive.secretKey provided without archive.accessKey")
	}
	if cfg.BreakerThreshold < 0 {
		return fmt.Errorf("archive.breakerThreshold must not be negative")
	}
	if cfg.BreakerThreshold > 0 && (cfg.BreakerWindow <= 0 || cfg.BreakerCooldown <= 0) {
		return fmt.Errorf("archive.breakerWindow and archive.breakerCooldown must be positive when archive.breakerThreshold is set")
	}
	return nil
}
