package config

import (
	"github.com/spf13/viper"

	"github.com/wondough/bank/internal/security"
)

// LoadSecurityPolicy returns the process-wide hashing policy with defaults.
// The values are handed to components explicitly; nothing reads viper after
// startup.
func LoadSecurityPolicy() *security.Policy {
	viper.SetDefault("pbkdf2.iterations", 10000)
	viper.SetDefault("pbkdf2.key_size", 32)
	viper.SetDefault("pbkdf2.salt_length", 16)
	viper.SetDefault("token.length", 32)

	return &security.Policy{
		Iterations:  viper.GetInt("pbkdf2.iterations"),
		KeySize:     viper.GetInt("pbkdf2.key_size"),
		SaltLength:  viper.GetInt("pbkdf2.salt_length"),
		TokenLength: viper.GetInt("token.length"),
	}
}
