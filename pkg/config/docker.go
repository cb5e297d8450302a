package config

import (
	"os"
	"sync"
)

var (
	inDockerOnce sync.Once
	inDocker     bool
)

// InDocker reports whether the process runs inside a Docker container,
// detected once via /.dockerenv.
func InDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDocker = err == nil
	})
	return inDocker
}

// ResolveConnectorHost rewrites loopback hosts to host.docker.internal when
// running in Docker, so live connectors can reach databases on the host machine.
func ResolveConnectorHost(host string) string {
	return resolveHost(host, InDocker())
}

func resolveHost(host string, docker bool) string {
	if !docker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
