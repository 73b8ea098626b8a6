package carriers

import (
	"context"

	"github.com/goliatone/go-carriers/archive"
	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/notify"
	"github.com/goliatone/go-carriers/profiles"
	"github.com/goliatone/go-carriers/security"
	"github.com/goliatone/go-carriers/transport"
	"gocloud.dev/blob"
)

// Convenience constructors for the building blocks downstream wiring code
// needs most often. Each returns the package-level type behind the core
// contract it satisfies; import the leaf package directly when you need the
// concrete type.

func HTTPTransport(client transport.HTTPDoer) core.TransportAdapter {
	return transport.NewHTTPAdapter(client)
}

func SOAPTransport(client transport.HTTPDoer) core.TransportAdapter {
	return transport.NewSOAPAdapter(client)
}

func TransportRegistry() *transport.Registry {
	return transport.NewDefaultRegistry()
}

// ProfileCatalog loads one YAML carrier catalog per path and returns it as a
// profile source ready for NewSessionFactory or WithProfileSource.
func ProfileCatalog(paths ...string) (*profiles.Catalog, error) {
	catalog := profiles.NewCatalog()
	for _, path := range paths {
		if err := catalog.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// OpenDocumentArchive opens a gocloud blob bucket by URL (s3://, gs://,
// file://, mem://) as a document archive. The caller owns the returned
// bucket and must close it when the archive is no longer needed.
func OpenDocumentArchive(ctx context.Context, bucketURL string, opts ...archive.BlobOption) (core.DocumentArchive, *blob.Bucket, error) {
	return archive.OpenBlobArchive(ctx, bucketURL, opts...)
}

// CompletionNotifier posts signed batch-completion payloads to an HTTP
// endpoint, suitable for WithCompletionHandler.
func CompletionNotifier(adapter core.TransportAdapter, endpoint string, secret []byte, opts ...notify.Option) (core.CompletionHandler, error) {
	return notify.NewHTTPNotifier(adapter, endpoint, secret, opts...)
}

func AppKeySecrets(key string, opts ...security.Option) (core.SecretProvider, error) {
	return security.NewAppKeySecretProviderFromString(key, opts...)
}

func FailoverSecrets(primary core.SecretProvider, fallbacks []core.SecretProvider, opts ...security.FailoverOption) (core.SecretProvider, error) {
	return security.NewFailoverSecretProvider(primary, fallbacks, opts...)
}

// EncryptedCredentials wraps a secret provider in a credential source that
// keeps carrier passwords sealed at rest. Seal or SetSealed must be called
// per carrier before token negotiation can use it.
func EncryptedCredentials(provider core.SecretProvider) (*security.EncryptedCredentialSource, error) {
	return security.NewEncryptedCredentialSource(provider)
}
