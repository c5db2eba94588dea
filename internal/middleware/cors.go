package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/sirupsen/logrus"
)

// SecureCORSConfig builds the CORS policy from a comma separated origin list.
// Development adds localhost origins; a wildcard is refused outside development.
func SecureCORSConfig(originList string, development bool) cors.Config {
	config := cors.DefaultConfig()

	var allowedOrigins []string
	for _, origin := range strings.Split(originList, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if err := validateCORSOrigin(origin); err != nil {
			logrus.Warnf("Ignoring invalid CORS origin %q: %v", origin, err)
			continue
		}
		if origin == "*" && !development {
			logrus.Warn("Wildcard CORS origin is not allowed outside development, ignoring")
			continue
		}
		allowedOrigins = append(allowedOrigins, origin)
	}

	if development {
		for _, origin := range []string{"http://localhost:3000", "http://localhost:8080", "http://localhost:8081", "http://localhost:19006"} {
			if !containsString(allowedOrigins, origin) {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	if len(allowedOrigins) == 0 {
		logrus.Warn("No CORS origins configured, cross-origin requests will be rejected")
		config.AllowOriginFunc = func(string) bool { return false }
	} else if containsString(allowedOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}

	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	config.ExposeHeaders = []string{"Content-Length", "Content-Type"}
	config.AllowCredentials = false
	config.MaxAge = 12 * time.Hour

	logrus.Infof("CORS configured with %d allowed origins", len(allowedOrigins))
	return config
}

// WebSocketOriginCheck returns a websocket CheckOrigin func honouring the same
// origin list as SecureCORSConfig. Requests without an Origin header come from
// native clients and are allowed. Development allows every origin.
func WebSocketOriginCheck(originList string, development bool) func(*http.Request) bool {
	if development {
		return func(*http.Request) bool { return true }
	}
	config := SecureCORSConfig(originList, false)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || config.AllowAllOrigins {
			return true
		}
		return containsString(config.AllowOrigins, strings.TrimSuffix(origin, "/"))
	}
}

func validateCORSOrigin(origin string) error {
	if origin == "*" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme: %s (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in origin")
	}
	return nil
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
