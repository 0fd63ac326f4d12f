// Package services defines the remote collaborators of the sync engine and implements them.
//
// # Marketplace
//
// [Marketplace] is the crowdsourcing marketplace work units are posted to.
// [MarketClient] talks to its JSON API. Each request waits on a [rate.Limiter]
// and carries a bearer token from an [oauth2.StaticTokenSource].
//
// # Storage
//
// [Storage] holds audio chunks and question documents at public URLs:
//   - [S3Storage]: public-read objects via aws-sdk-go-v2
//   - [SFTPStorage]: files on a web host via pkg/sftp over x/crypto/ssh
//
// Both map names to URLs under the configured storage URL. BasenameForURL
// refuses URLs on another host or path with [shared.ErrConfigMismatch], which
// is how the engine detects that a project was uploaded under a different config.
//
// # Probing
//
// [HTTPProber] answers "is this file there?" with a HEAD request; the engine uses it
// to resolve uncertain markers. [HTTPQuestionFetcher] reads hidden form fields out of
// a published question document with x/net/html.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : marketplace request failed
//   - [shared.ErrUnitNotFound] : marketplace returned 404
//   - [shared.ErrStorage] : storage or probe failure
//   - [shared.ErrConfigMismatch] : URL outside the configured storage location
//   - [shared.ErrMalformedReference] : stored value is not a URL
package services
