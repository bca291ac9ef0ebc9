package config

// ServerConfig holds per-server overrides from the config file.
// The CSRF token and cookie cover servers that gate the frame endpoints
// behind an authenticated browser session.
type ServerConfig struct {
	// CSRFToken is sent as the anti-forgery token on form posts
	// (session close, intake confirmation) and as the X-CSRF-Token
	// header on uploads.
	CSRFToken string `yaml:"csrfToken,omitempty"`

	// Cookie is an HTTP cookie header value sent with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Mode overrides the camera mode key for this server.
	Mode string `yaml:"mode,omitempty"`
}

// File represents the structure of the .scanagent configuration file.
type File struct {
	// Servers maps server hosts to their overrides.
	// Keys are "host" or "host:port" as they appear in the server URL.
	Servers map[string]ServerConfig `yaml:"servers,omitempty"`

	// Defaults contains overrides applied to all servers unless
	// overridden in the server-specific configuration.
	Defaults ServerConfig `yaml:"defaults,omitempty"`
}

// GetServerConfig returns the configuration for a specific server host.
// It merges the server-specific configuration with defaults.
func (cf *File) GetServerConfig(host string) ServerConfig {
	result := cf.Defaults

	if sc, ok := cf.Servers[host]; ok {
		if sc.CSRFToken != "" {
			result.CSRFToken = sc.CSRFToken
		}
		if sc.Cookie != "" {
			result.Cookie = sc.Cookie
		}
		if sc.Mode != "" {
			result.Mode = sc.Mode
		}
		if len(sc.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range sc.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}
