package utils

// Version is set by the build, e.g. -ldflags "-X ...utils.Version=0.1.2"
var Version = "0.1.0"
