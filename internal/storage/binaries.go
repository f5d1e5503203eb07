package storage

// Resolved external tool locations, set once at startup.
var (
	FfmpegPath  = "ffmpeg"
	FfprobePath = "ffprobe"
)
