package gitcred

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// Request is a credential description exchanged with git. Attributes git
// sends that are not listed here are ignored.
type Request struct {
	Protocol string
	Host     string
	Path     string
	URL      string
	Username string
	Password string
}

// Parse reads key=value lines until a blank line or EOF.
func Parse(r io.Reader) (*Request, error) {
	req := &Request{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line without '=': %q", kerrors.ErrMalformedCredentialRequest, key)
		}
		switch key {
		case "protocol":
			req.Protocol = value
		case "host":
			req.Host = value
		case "path":
			req.Path = value
		case "url":
			req.URL = value
		case "username":
			req.Username = value
		case "password":
			req.Password = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credential request: %w", err)
	}
	return req, nil
}

// ResolveURL returns the url attribute, or builds protocol://host/path when
// git did not send one. The slash after host is kept for an empty path.
func (r *Request) ResolveURL() (string, error) {
	if r.URL != "" {
		return r.URL, nil
	}
	if r.Protocol == "" || r.Host == "" {
		return "", fmt.Errorf("%w: neither url nor protocol and host given", kerrors.ErrMalformedCredentialRequest)
	}
	return r.Protocol + "://" + r.Host + "/" + strings.TrimPrefix(r.Path, "/"), nil
}

// WithCredentials returns a copy of r carrying username and password.
func (r *Request) WithCredentials(username, password string) *Request {
	out := *r
	out.Username = username
	out.Password = password
	return &out
}

// WriteTo writes the non-empty attributes in git's format.
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, attr := range []struct{ key, value string }{
		{"protocol", r.Protocol},
		{"host", r.Host},
		{"path", r.Path},
		{"url", r.URL},
		{"username", r.Username},
		{"password", r.Password},
	} {
		if attr.value != "" {
			sb.WriteString(attr.key + "=" + attr.value + "\n")
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
