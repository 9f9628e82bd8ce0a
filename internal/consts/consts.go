// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultMaxParallel is the default number of concurrent download workers.
	DefaultMaxParallel = 2
	// DefaultRetryLimit is the default number of attempts per item.
	DefaultRetryLimit = 3
	// DefaultRetryBackoff is the fixed wait between failed attempts.
	DefaultRetryBackoff = 1 * time.Second
	// DefaultProgressFreq caps how often progress updates are forwarded per item.
	DefaultProgressFreq = 200 * time.Millisecond
	// DefaultCrashCooldown is how long the menu waits before restarting after a crash.
	DefaultCrashCooldown = 5 * time.Second
	// DefaultProxyBackoff is how long a failed proxy stays out of rotation.
	DefaultProxyBackoff = 30 * time.Second
	// DefaultSimulateTime is the default time the mock engine takes per download.
	DefaultSimulateTime = 1 * time.Second
)

// Format selection.
const (
	// SelectorBest fetches the best available video merged with the best audio.
	SelectorBest = "bestvideo+bestaudio/best"
	// SelectorBestAudio fetches the best available audio stream.
	SelectorBestAudio = "bestaudio/best"
	// DefaultOutputTemplate bounds titles to 100 runes to avoid path-length failures.
	DefaultOutputTemplate = "%(title).100s.%(ext)s"
	// DefaultAudioQuality is the bitrate handed to the audio extraction post-processor.
	DefaultAudioQuality = "192"
	// DefaultSubtitleFormat is the subtitle container requested from the engine.
	DefaultSubtitleFormat = "srt"
	// DefaultSubtitleLang is used when the subtitle prompt is left empty.
	DefaultSubtitleLang = "en"
)

// Post-processor kinds.
const (
	// PostProcessorExtractAudio converts the downloaded source to an audio container.
	PostProcessorExtractAudio = "extract-audio"
)

// Engine identifiers.
const (
	// EngineYTDLP is the yt-dlp subprocess engine identifier.
	EngineYTDLP = "ytdlp"
	// EngineMock is the mock engine identifier for testing.
	EngineMock = "mock"
)

// Files.
const (
	// RunConfigFileName is the persisted run configuration file.
	RunConfigFileName = "config.yml"
)
