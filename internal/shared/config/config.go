package config

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the intermediate store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// CSVConfig contains csv input settings.
type CSVConfig struct {
	Delimiter string `mapstructure:"delimiter"`
}
