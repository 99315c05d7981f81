// Package config loads workloadops configuration.
//
// It uses Viper to read a YAML file, overlays an optional .env file loaded
// with godotenv, then binds every environment variable carrying the
// service prefix (for example WORKLOADCTL_REDIS_ADDR) onto the nested
// keys it could name before unmarshalling into the caller's struct.
//
// # Usage
//
//	var cfg Config
//	err := config.LoadConfig("workloadctl", &cfg, config.WithConfigFile(path))
package config
