package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/miaou/internal/config"
	"github.com/amaumene/miaou/pkg/logger"
	"github.com/amaumene/miaou/pkg/security"
)

const (
	// ConfigParam is the route parameter holding the encoded user config.
	ConfigParam = "configuration"
	configKey   = "user_config"
)

// UserConfig decodes the configuration segment and merges it over base. A
// missing or malformed segment ends the request with 400.
func UserConfig(base *config.Config, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		segment := c.Param(ConfigParam)
		if segment == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Configuration required",
				"message": "Please provide a valid configuration",
			})
			return
		}

		data, err := config.DecodeUserConfig(segment)
		if err != nil {
			log.Warnf("[Auth] invalid configuration from %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid configuration",
				"message": "The configuration is malformed",
			})
			return
		}

		c.Set(configKey, config.CreateFromUserData(data, base))
		c.Next()
	}
}

// ConfigFrom returns the configuration stored by UserConfig.
func ConfigFrom(c *gin.Context) (*config.Config, bool) {
	v, ok := c.Get(configKey)
	if !ok {
		return nil, false
	}
	cfg, ok := v.(*config.Config)
	return cfg, ok && cfg != nil
}

// AccessKey requires the user configuration to carry serverKey. An empty
// serverKey disables the check. It must run after UserConfig.
func AccessKey(serverKey string, log logger.Logger) gin.HandlerFunc {
	validator := security.NewAPIKeyValidator()

	return func(c *gin.Context) {
		if serverKey == "" {
			c.Next()
			return
		}

		cfg, ok := ConfigFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Configuration required",
				"message": "Please provide a valid configuration",
			})
			return
		}

		if cfg.AccessKey == "" {
			log.Warnf("[Auth] access denied, no access key in config from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Please include an access key in your configuration",
			})
			return
		}

		if !validator.SecureCompare(cfg.AccessKey, serverKey) {
			log.Warnf("[Auth] access denied, invalid key from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Invalid access key",
				"message": "The provided access key is invalid",
			})
			return
		}

		c.Next()
	}
}
