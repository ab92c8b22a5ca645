package transport

// Version is the current build version, injected at build time via ldflags:
//
//	-X github.com/guardline/promptguard/src/transport.Version=<tag>
//
// Defaults to "dev" when built without ldflags (local development).
var Version = "dev"
