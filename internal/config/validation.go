package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
}

// Validate checks struct tags, then the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Listing.DefaultPageSize > cfg.Listing.MaxPageSize {
		return fmt.Errorf("listing.default_page_size (%d) exceeds listing.max_page_size (%d)", cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize)
	}
	if cfg.Blobs.Backend == "s3" {
		if strings.TrimSpace(cfg.Blobs.S3.Bucket) == "" {
			return fmt.Errorf("blobs.s3.bucket is required when blobs.backend is s3")
		}
		if strings.TrimSpace(cfg.Blobs.S3.Region) == "" {
			return fmt.Errorf("blobs.s3.region is required when blobs.backend is s3")
		}
		if cfg.Blobs.S3.PartSizeMB != 0 && cfg.Blobs.S3.PartSizeMB < minS3PartSizeMB {
			return fmt.Errorf("blobs.s3.part_size_mb must be at least %d", minS3PartSizeMB)
		}
		if (cfg.Blobs.S3.AccessKeyID == "") != (cfg.Blobs.S3.SecretAccessKey == "") {
			return fmt.Errorf("blobs.s3.access_key_id and blobs.s3.secret_access_key must be set together")
		}
	}
	if cfg.Admin.TokenHash != "" && !strings.HasPrefix(cfg.Admin.TokenHash, "$2") {
		return fmt.Errorf("admin.token_hash must be a bcrypt hash (see fstore admin hash-token)")
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
