package config

const (
	defaultCacheDirFallback  = "~/.cache/scriptycut/clips"
	defaultStateDir          = "~/.local/share/scriptycut"
	defaultLogDir            = "~/.local/share/scriptycut/logs"
	defaultCacheVersion      = 1
	defaultFPSHint           = "30"
	defaultWidth             = 1920
	defaultHeight            = 1080
	defaultSampleRate        = 48000
	defaultThreads           = 1
	defaultIntermediateCodec = "ffv1"
	defaultVideoCodec        = "libx264"
	defaultPreset            = "medium"
	defaultCRF               = 23
	defaultAudioCodec        = "aac"
	defaultAudioBitrate      = "192k"
	defaultFFmpeg            = "ffmpeg"
	defaultFFprobe           = "ffprobe"
	defaultFFplay            = "ffplay"
	defaultProbeTimeout      = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Cache: Cache{
			DiscardOrphans: true,
			FormatVersion:  defaultCacheVersion,
		},
		Render: Render{
			FPSHint:           defaultFPSHint,
			Width:             defaultWidth,
			Height:            defaultHeight,
			SampleRate:        defaultSampleRate,
			Threads:           defaultThreads,
			IntermediateCodec: defaultIntermediateCodec,
			VideoCodec:        defaultVideoCodec,
			Preset:            defaultPreset,
			CRF:               defaultCRF,
			AudioCodec:        defaultAudioCodec,
			AudioBitrate:      defaultAudioBitrate,
		},
		Tools: Tools{
			FFmpeg:       defaultFFmpeg,
			FFprobe:      defaultFFprobe,
			FFplay:       defaultFFplay,
			ProbeTimeout: defaultProbeTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
