package app

// Config carries the gateway's entry-point flags, mirroring the
// teacher's own CLI-flags-to-bootstrap-config shape.
type Config struct {
	Debug      bool
	Yolo       bool
	ConfigPath string
	Silent     bool
}

func NewConfig(debug, yolo, silent bool, configPath string) *Config {
	return &Config{Debug: debug, Yolo: yolo, Silent: silent, ConfigPath: configPath}
}
