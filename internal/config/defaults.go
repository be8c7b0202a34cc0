package config

const (
	defaultConfigPath           = "~/.config/overlaystudio/config.toml"
	defaultDataDir              = "~/.local/share/overlaystudio"
	defaultAPIBind              = "127.0.0.1:8787"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMReferer           = "https://github.com/overlaystudio/overlaystudio"
	defaultLLMTitle             = "overlaystudio"
	defaultLLMTimeoutSeconds    = 60
	defaultWhisperXModel        = "large-v3"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultYTDLPBinary          = "yt-dlp"
	defaultHTTPTimeoutSeconds   = 300
	defaultMaxDownloadMiB       = 2048
	defaultBlobHostSuffix       = ".public.blob.vercel-storage.com"
	defaultWidth                = 1920
	defaultHeight               = 1080
	defaultDurationSeconds      = 30.0
	defaultFPS                  = 30
	defaultRenderTimeoutSeconds = 3600
	defaultQueueSize            = 64
	defaultQualityThreshold     = 0.62
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultStorageRegion        = "us-east-1"
	defaultStorageEndpoint      = "127.0.0.1:9000"
	defaultUploadsSubdir        = "uploads"
	defaultRendersSubdir        = "renders"
	defaultWorkSubdir           = "work"
	defaultLogsSubdir           = "logs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcription: Transcription{
			Model:        defaultWhisperXModel,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Ingest: Ingest{
			YTDLPBinary:        defaultYTDLPBinary,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
			BlobHostSuffixes:   []string{defaultBlobHostSuffix},
			MaxDownloadMiB:     defaultMaxDownloadMiB,
		},
		Storage: Storage{
			Endpoint: defaultStorageEndpoint,
			Region:   defaultStorageRegion,
		},
		Media: Media{
			FFprobeBinary:          defaultFFprobeBinary,
			DefaultWidth:           defaultWidth,
			DefaultHeight:          defaultHeight,
			DefaultDurationSeconds: defaultDurationSeconds,
		},
		Render: Render{
			FPS:            defaultFPS,
			TimeoutSeconds: defaultRenderTimeoutSeconds,
		},
		Workflow: Workflow{
			QueueSize:        defaultQueueSize,
			QualityThreshold: defaultQualityThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
