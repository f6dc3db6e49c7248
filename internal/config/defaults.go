package config

const (
	defaultProjectDir    = "~/.local/share/cutplan/projects"
	defaultLogDir        = "~/.local/share/cutplan/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultFrameRateNum  = 24000
	defaultFrameRateDen  = 1001
	defaultWidth         = 1920
	defaultHeight        = 1080
	defaultSampleRate    = 48000
	defaultSnapshotEvery = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectDir: defaultProjectDir,
			LogDir:     defaultLogDir,
		},
		Sequence: Sequence{
			FrameRateNum: defaultFrameRateNum,
			FrameRateDen: defaultFrameRateDen,
			Width:        defaultWidth,
			Height:       defaultHeight,
			SampleRate:   defaultSampleRate,
		},
		Log: Log{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			SnapshotEvery: defaultSnapshotEvery,
		},
	}
}
