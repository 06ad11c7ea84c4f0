package config

const (
	defaultDataDir           = "~/.local/share/mediabot"
	defaultLogDir            = "~/.local/share/mediabot/logs"
	defaultFontsDir          = "~/.local/share/mediabot/fonts"
	defaultAPIBind           = "127.0.0.1:7417"
	defaultTelegramBaseURL   = "https://api.telegram.org"
	defaultPollTimeout       = 50
	defaultRequestTimeout    = 30
	defaultMaxImageMB        = 10
	defaultMaxVideoMB        = 100
	defaultMaxDocumentMB     = 50
	defaultQueuePollInterval = 2
	defaultMaxConcurrentJobs = 2
	defaultJobTimeout        = 1800
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultGhostscriptBinary = "gs"
	defaultTesseractBinary   = "tesseract"
	defaultRembgBinary       = "rembg"
	defaultRembgModel        = "u2net"
	defaultOCRLanguage       = "eng"
	defaultOCRDPI            = 300
	defaultCaptionFontName   = "Consolas"
	defaultCaptionFontSize   = 20
	defaultCaptionFontColor  = "white"
	defaultCaptionBoxColor   = "black"
	defaultCaptionOpacity    = 0.5
	defaultCaptionPadding    = 10
	defaultCaptionPosition   = "center"
	defaultStorageBackend    = "local"
	defaultRetentionHours    = 24
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
)

func defaultCaptionBox() []float64 { return []float64{0.4, 0.4, 0.5, 0.45} }

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			FontsDir: defaultFontsDir,
			APIBind:  defaultAPIBind,
		},
		Telegram: Telegram{
			BaseURL:        defaultTelegramBaseURL,
			PollTimeout:    defaultPollTimeout,
			RequestTimeout: defaultRequestTimeout,
		},
		Limits: Limits{
			MaxImageMB:    defaultMaxImageMB,
			MaxVideoMB:    defaultMaxVideoMB,
			MaxDocumentMB: defaultMaxDocumentMB,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			JobTimeout:        defaultJobTimeout,
		},
		Tools: Tools{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			GhostscriptBinary: defaultGhostscriptBinary,
			TesseractBinary:   defaultTesseractBinary,
			RembgBinary:       defaultRembgBinary,
			RembgModel:        defaultRembgModel,
		},
		OCR: OCR{
			Language: defaultOCRLanguage,
			DPI:      defaultOCRDPI,
		},
		Caption: Caption{
			FontName:   defaultCaptionFontName,
			FontSize:   defaultCaptionFontSize,
			FontColor:  defaultCaptionFontColor,
			BoxColor:   defaultCaptionBoxColor,
			BoxOpacity: defaultCaptionOpacity,
			Padding:    defaultCaptionPadding,
			Position:   defaultCaptionPosition,
			Box:        defaultCaptionBox(),
		},
		Storage: Storage{
			Backend:        defaultStorageBackend,
			RetentionHours: defaultRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			DaemonEvents:   true,
			JobFailures:    true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
