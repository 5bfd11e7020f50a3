package utils

// Set at link time with -ldflags "-X".
var (
	Tag        = "dev"
	GitHash    = "unknown"
	BuildStamp = "unknown"
)
