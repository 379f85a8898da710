package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	SchemeS3    = "s3"
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Location is a parsed object URI. For s3 Bucket holds the bucket and Key the object key;
// for file Key holds the local path.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func ParseURI(uri string) (Location, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return Location{}, fmt.Errorf("empty storage uri")
	}
	if !strings.Contains(trimmed, "://") {
		return Location{Scheme: SchemeFile, Key: trimmed}, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage uri %q: %w", uri, err)
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case SchemeS3:
		if u.Host == "" {
			return Location{}, fmt.Errorf("s3 uri %q has no bucket", uri)
		}
		return Location{Scheme: scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case SchemeFile:
		return Location{Scheme: scheme, Key: u.Host + u.Path}, nil
	case SchemeHTTP, SchemeHTTPS:
		return Location{Scheme: scheme, Bucket: u.Host, Key: u.Path}, nil
	default:
		return Location{Scheme: scheme, Bucket: u.Host, Key: u.Path}, nil
	}
}

// Join appends path elements to a URI prefix without collapsing the scheme separator.
func Join(prefix string, elems ...string) string {
	joined := strings.TrimRight(prefix, "/")
	for _, elem := range elems {
		elem = strings.Trim(elem, "/")
		if elem == "" {
			continue
		}
		joined += "/" + elem
	}
	return joined
}

// Base returns the last element of a URI path.
func Base(uri string) string {
	return path.Base(strings.TrimRight(uri, "/"))
}

// GDALPath maps a storage URI to a path GDAL can open directly.
func GDALPath(uri string) string {
	loc, err := ParseURI(uri)
	if err != nil {
		return uri
	}
	switch loc.Scheme {
	case SchemeS3:
		return "/vsis3/" + loc.Bucket + "/" + loc.Key
	case SchemeHTTP, SchemeHTTPS:
		return "/vsicurl/" + uri
	case SchemeFile:
		return loc.Key
	}
	return uri
}
