package version

// Version is overridden at build time with -ldflags "-X dirdiff/version.Version=...".
var Version = "dev"
