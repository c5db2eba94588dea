// Package credentials checks that a project URL is well formed and that an
// access credential is accepted by the project before it is stored.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "supamon-backend/internal/errors"
	"supamon-backend/internal/postgrest"
)

// PostgREST codes that mean "the relation is not exposed". Reaching one of
// them proves the credential got past authentication.
var notFoundCodes = map[string]struct{}{
	"42P01":    {},
	"PGRST106": {},
	"PGRST200": {},
	"PGRST205": {},
}

// Result is the outcome of Validate. ProjectRef is set only when Valid.
type Result struct {
	Valid      bool                `json:"valid"`
	ProjectRef string              `json:"projectRef,omitempty"`
	Error      *apperrors.AppError `json:"error,omitempty"`
}

// Validator validates project URLs and credentials.
type Validator struct {
	pattern    *regexp.Regexp
	probeTable string
	clientOpts []postgrest.Option
}

// NewValidator accepts URLs of the form http(s)://<ref>.<domain> and probes
// probeTable to test credentials. clientOpts are passed to every probe client.
func NewValidator(domain, probeTable string, clientOpts ...postgrest.Option) (*Validator, error) {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return nil, errors.New("provider domain is required")
	}
	if probeTable == "" {
		probeTable = "auth.users"
	}
	pattern, err := regexp.Compile(`(?i)^https?://([a-z0-9]+)\.` + regexp.QuoteMeta(domain) + `(?::\d+)?(?:/.*)?$`)
	if err != nil {
		return nil, fmt.Errorf("compile url pattern: %w", err)
	}
	return &Validator{pattern: pattern, probeTable: probeTable, clientOpts: clientOpts}, nil
}

// ParseProjectRef extracts the lowercase project reference from url.
func (v *Validator) ParseProjectRef(url string) (string, bool) {
	m := v.pattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// Validate never returns an error; failures are reported in Result.Error.
// A malformed URL is rejected without any network traffic.
func (v *Validator) Validate(ctx context.Context, url, credential string) Result {
	url = strings.TrimSpace(url)
	ref, ok := v.ParseProjectRef(url)
	if !ok {
		return Result{Error: apperrors.ErrInvalidURLFormat}
	}

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Result{Error: rejected("credential is empty")}
	}

	client, err := postgrest.NewClient(url, credential, v.clientOpts...)
	if err != nil {
		return Result{Error: apperrors.ErrInvalidURLFormat}
	}

	err = client.Probe(ctx, v.probeTable)
	if err == nil || isMissingRelation(err) {
		return Result{Valid: true, ProjectRef: ref}
	}

	logrus.WithFields(logrus.Fields{
		"project_ref": ref,
		"error":       err.Error(),
	}).Info("Credential probe rejected")
	return Result{Error: rejected(err.Error())}
}

func rejected(details string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    apperrors.CodeCredentialRejected,
		Message: apperrors.ErrCredentialRejected.Message,
		Details: details,
	}
}

func isMissingRelation(err error) bool {
	var apiErr *postgrest.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	_, ok := notFoundCodes[apiErr.Code]
	return ok
}
