package handlers

import (
	"net/http"
	"runtime/debug"
	"sync"
)

// Version is set with -ldflags "-X github.com/photodiary/server/internal/handlers.Version=..."
var Version = "dev"

// BuildInfo identifies the running photodiary binary
type BuildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
}

var buildInfo = sync.OnceValue(func() BuildInfo {
	info := BuildInfo{Version: Version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
})

// VersionHandler reports which build of the diary server is running
// @Summary Build version
// @Tags health
// @Produce json
// @Success 200 {object} BuildInfo
// @Router /api/version [get]
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildInfo())
}
