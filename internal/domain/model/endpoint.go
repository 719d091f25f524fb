package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidInput wraps validation failures of user-supplied endpoint data.
var ErrInvalidInput = errors.New("invalid input")

// Endpoint is a registered Elasticsearch cluster. PasswordEncrypted holds the
// base64 nonce||ciphertext payload produced by the credential cipher, or nil
// when no password is configured.
type Endpoint struct {
	ID                int64
	Name              string
	URL               string
	Insecure          bool
	Username          string
	PasswordEncrypted *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasStoredPassword reports whether the endpoint carries an encrypted payload.
func (e Endpoint) HasStoredPassword() bool {
	return e.PasswordEncrypted != nil && *e.PasswordEncrypted != ""
}

// EndpointInput is the plaintext form used to create or update an endpoint.
//
// On update, a nil Password leaves the stored password untouched, an empty
// string clears it and any other value replaces it.
type EndpointInput struct {
	Name     string
	URL      string
	Insecure bool
	Username string
	Password *string
}

// Validate checks the input and normalizes the URL by dropping trailing slashes.
func (in *EndpointInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimRight(strings.TrimSpace(in.URL), "/")
	in.Username = strings.TrimSpace(in.Username)

	err := validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&in.URL, validation.Required, validation.By(httpURL)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// LegacyEndpointRecord is an endpoint row from the pre-encryption schema, where
// the password lived either in the OS keyring (KeychainID) or as base64
// plaintext (PasswordFallback). It only exists during the one-time upgrade.
type LegacyEndpointRecord struct {
	ID               int64
	Name             string
	KeychainID       string
	PasswordFallback string
}

// HasLegacySecret reports whether either legacy secret field is populated.
func (r LegacyEndpointRecord) HasLegacySecret() bool {
	return r.KeychainID != "" || r.PasswordFallback != ""
}
