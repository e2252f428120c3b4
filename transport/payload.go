package transport

import (
	"os"
	"runtime"

	"github.com/zoobzio/apmz"
)

// Service identifies the instrumented application.
type Service struct {
	Framework   *Named `json:"framework,omitempty"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
	Agent       Named  `json:"agent"`
	Language    Named  `json:"language"`
}

// Named is a name/version pair.
type Named struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// System describes the host.
type System struct {
	Hostname     string `json:"hostname"`
	Platform     string `json:"platform"`
	Architecture string `json:"architecture"`
}

// Process describes the running process.
type Process struct {
	PID int `json:"pid"`
}

// Metadata is sent with every batch.
type Metadata struct {
	Service Service `json:"service"`
	System  System  `json:"system"`
	Process Process `json:"process"`
}

type errorsPayload struct {
	Metadata
	Errors []*apmz.ErrorRecord `json:"errors"`
}

type transactionsPayload struct {
	Metadata
	Transactions []*apmz.Transaction `json:"transactions"`
}

// NewMetadata builds the batch metadata from cfg.
func NewMetadata(cfg apmz.Config) Metadata {
	return Metadata{
		Service: Service{
			Name:        cfg.AppName,
			Version:     cfg.AppVersion,
			Environment: cfg.Environment,
			Agent:       Named{Name: apmz.AgentName, Version: apmz.AgentVersion},
			Language:    Named{Name: "go", Version: runtime.Version()},
		},
		System: System{
			Hostname:     cfg.Hostname,
			Platform:     runtime.GOOS,
			Architecture: runtime.GOARCH,
		},
		Process: Process{PID: os.Getpid()},
	}
}
