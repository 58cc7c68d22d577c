package common

import (
	"bytes"
	"fmt"
)

// Set at build time with -ldflags "-X github.com/WangYihang/subprobe/internal/common.Version=..."
var (
	PV         ProgramVersion
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func init() {
	PV.Version = Version
	PV.CommitHash = CommitHash
	PV.BuildTime = BuildTime
}

type ProgramVersion struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
}

func (v ProgramVersion) Short() string {
	return fmt.Sprintf("subprobe %s (%s)", v.Version, v.CommitHash)
}

func (v ProgramVersion) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("subprobe: subdomain discovery by TCP reachability\n")
	buffer.WriteString(fmt.Sprintf("Version: %s\n", v.Version))
	buffer.WriteString(fmt.Sprintf("Commit: %s\n", v.CommitHash))
	buffer.WriteString(fmt.Sprintf("Build Date: %s", v.BuildTime))
	return buffer.String()
}
