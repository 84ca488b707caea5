package validation

import (
	"net/url"
	"path"
	"strings"

	apperrors "go-xray-inspector/internal/errors"
)

// Reference schemes understood by the image repository. A reference without
// a scheme is a local path.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeBlob  = "azblob"
	SchemeFile  = "file"
)

// RefValidator handles image reference validation logic
type RefValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewRefValidator accepts remote URLs and blob references. Local files are
// only accepted when file is listed explicitly.
func NewRefValidator() *RefValidator {
	return &RefValidator{
		allowedSchemes: []string{SchemeHTTP, SchemeHTTPS, SchemeBlob},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewRefValidatorWithOptions creates a reference validator with custom options
func NewRefValidatorWithOptions(schemes []string, hosts []string) *RefValidator {
	return &RefValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// Scheme returns the normalized scheme of ref, SchemeFile for bare paths.
func Scheme(ref string) string {
	ref = strings.TrimSpace(ref)
	i := strings.Index(ref, "://")
	if i <= 0 {
		return SchemeFile
	}
	return strings.ToLower(ref[:i])
}

// ValidateRef validates if the provided reference is acceptable for image processing
func (v *RefValidator) ValidateRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewValidationError("reference cannot be empty", nil)
	}

	scheme := Scheme(ref)
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("reference scheme not allowed", nil).WithDetails(scheme)
	}

	switch scheme {
	case SchemeHTTP, SchemeHTTPS:
		return v.validateURL(ref)
	case SchemeBlob:
		if _, _, err := ParseBlobRef(ref); err != nil {
			return err
		}
	case SchemeFile:
		if FilePath(ref) == "" {
			return apperrors.NewValidationError("file reference must name a path", nil)
		}
	}
	return nil
}

func (v *RefValidator) validateURL(ref string) error {
	parsedURL, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ParseBlobRef splits azblob://container/path/to/blob.
func ParseBlobRef(ref string) (container, blob string, err error) {
	rest := strings.TrimSpace(ref)
	if Scheme(rest) != SchemeBlob {
		return "", "", apperrors.NewValidationError("not a blob reference", nil)
	}
	rest = rest[len(SchemeBlob)+3:]

	container, blob, _ = strings.Cut(rest, "/")
	blob = strings.TrimLeft(blob, "/")
	if container == "" || blob == "" {
		return "", "", apperrors.NewValidationError("blob reference must name a container and a blob", nil)
	}
	return container, blob, nil
}

// FilePath returns the cleaned local path of a file:// or bare reference.
func FilePath(ref string) string {
	ref = strings.TrimSpace(ref)
	if Scheme(ref) == SchemeFile {
		ref = strings.TrimPrefix(ref, "file://")
	}
	if ref == "" {
		return ""
	}
	return path.Clean(ref)
}

// isSchemeAllowed checks if the reference scheme is in the allowed list
func (v *RefValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *RefValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
