// Package address parses TN3270 host targets of the form [lu[,lu...]@]host[:port].
package address

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/coaxterm/pkg/domain"
)

// DefaultPort is used when neither the target nor the legacy argument names a port.
const DefaultPort = 23

// Parse resolves a target string into a HostTarget.
//
// legacyPort is the deprecated standalone port argument (nil when absent). A port
// embedded in the target always wins over it; both paths log a deprecation notice.
// Invalid input yields a *domain.ConfigError naming the offending value.
func Parse(target string, legacyPort *int, logger *slog.Logger) (domain.HostTarget, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	hostPart := target
	port := 0

	if i := strings.LastIndex(target, ":"); i >= 0 {
		hostPart = target[:i]
		token := target[i+1:]

		p, err := strconv.Atoi(token)
		if err != nil {
			return domain.HostTarget{}, &domain.ConfigError{Arg: "host", Value: token, Reason: "invalid port", Err: err}
		}
		if !IsValidPort(p) {
			return domain.HostTarget{}, &domain.ConfigError{Arg: "host", Value: token, Reason: "invalid port"}
		}
		port = p
	}

	if legacyPort != nil {
		if port == 0 {
			if !IsValidPort(*legacyPort) {
				return domain.HostTarget{}, &domain.ConfigError{Arg: "port", Value: strconv.Itoa(*legacyPort), Reason: "invalid port"}
			}
			port = *legacyPort
			logger.Info("The port argument is deprecated and will be removed in the future, use host:port instead.")
		} else {
			logger.Warn("The port argument is deprecated and will be removed in the future, port from host:port is being used.")
		}
	}

	if port == 0 {
		port = DefaultPort
	}

	var luNames []string

	luPart, host, found := strings.Cut(hostPart, "@")
	if found {
		luNames = strings.Split(luPart, ",")
	} else {
		host = luPart
	}

	host = strings.TrimSpace(host)
	if host == "" {
		return domain.HostTarget{}, &domain.ConfigError{Arg: "host", Value: target, Reason: "host name is required"}
	}

	return domain.HostTarget{Host: host, Port: port, LUNames: luNames}, nil
}

// IsValidPort reports whether p is a usable TCP port.
func IsValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
