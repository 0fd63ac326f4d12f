package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// Location maps stored file names to public URLs and back.
// Backends embed it to satisfy the URL half of [Storage].
type Location struct {
	base *url.URL
}

// NewLocation parses the public base URL files are served under.
func NewLocation(rawBase string) (Location, error) {
	base, err := url.Parse(rawBase)
	if err != nil || base.Host == "" {
		return Location{}, fmt.Errorf("%w: storage url %q", shared.ErrInvalidConfig, rawBase)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawPath = ""
	return Location{base: base}, nil
}

func (l Location) Host() string {
	return l.base.Host
}

func (l Location) BasePath() string {
	return l.base.Path
}

func (l Location) URLForName(name string) string {
	u := *l.base
	u.Path = l.base.Path + "/" + name
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// BasenameForURL only accepts URLs on the configured host whose directory is exactly the base path.
func (l Location) BasenameForURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not a URL", shared.ErrMalformedReference, rawURL)
	}
	if !strings.EqualFold(u.Host, l.base.Host) {
		return "", fmt.Errorf("%w: %s is not on %s", shared.ErrConfigMismatch, rawURL, l.base.Host)
	}

	name, ok := strings.CutPrefix(u.Path, l.base.Path+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: %s is not under %s", shared.ErrConfigMismatch, rawURL, l.base.Path)
	}
	return name, nil
}
