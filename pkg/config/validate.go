package config

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate checks cfg against its `validate` struct tags, returning the
// validator's own error (its messages already read "...failed on the 'oneof'
// tag", "...failed on the 'max' tag", etc).
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
