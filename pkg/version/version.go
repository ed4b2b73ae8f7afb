package version

import "runtime/debug"

// Name is the server name advertised during MCP initialization.
const Name = "excel-mcp-server"

var version = "dev"

// Version reports the -ldflags build string, then the module version, then "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}
