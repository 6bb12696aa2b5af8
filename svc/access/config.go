package access

// Config points at an optional YAML feature registry.
type Config struct {
	FeaturesFile string `env:"ACCESS_FEATURES_FILE"`
}
