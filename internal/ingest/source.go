package ingest

import (
	"net/url"
	"strings"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
	"www.youtu.be":    true,
}

// SourcePolicy lists what ClassifySource accepts.
type SourcePolicy struct {
	BlobHostSuffixes []string
	ObjectStorage    bool
}

// IsYouTubeURL reports whether raw is an http(s) link to YouTube.
func IsYouTubeURL(raw string) bool {
	parsed, ok := parseHTTP(raw)
	if !ok {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return youtubeHosts[host] || strings.HasSuffix(host, ".youtube.com")
}

// ClassifySource validates a submitted URL and returns its kind.
func ClassifySource(raw string, policy SourcePolicy) (jobs.SourceKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", services.Wrap(services.ErrValidation, "submit", "classify source", "source url required", nil)
	}
	if strings.HasPrefix(strings.ToLower(raw), "s3://") {
		if !policy.ObjectStorage {
			return "", services.Wrap(services.ErrValidation, "submit", "classify source", "object storage is not configured", nil)
		}
		if _, _, err := ParseObjectURL(raw); err != nil {
			return "", err
		}
		return jobs.SourceObject, nil
	}
	if IsYouTubeURL(raw) {
		return jobs.SourceYouTube, nil
	}
	if parsed, ok := parseHTTP(raw); ok {
		host := strings.ToLower(parsed.Hostname())
		for _, suffix := range policy.BlobHostSuffixes {
			suffix = strings.ToLower(strings.TrimSpace(suffix))
			if suffix != "" && strings.HasSuffix(host, suffix) {
				return jobs.SourceRemote, nil
			}
		}
	}
	return "", services.Wrap(services.ErrValidation, "submit", "classify source", "unsupported source url (YouTube, allowed blob hosts or s3:// only)", nil)
}

// ParseObjectURL splits s3://bucket/key.
func ParseObjectURL(raw string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.EqualFold(parsed.Scheme, "s3") {
		return "", "", services.Wrap(services.ErrValidation, "ingest", "parse object url", "expected s3://bucket/key", err)
	}
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", services.Wrap(services.ErrValidation, "ingest", "parse object url", "expected s3://bucket/key", nil)
	}
	return bucket, key, nil
}

func parseHTTP(raw string) (*url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return nil, false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed, true
	}
	return nil, false
}
