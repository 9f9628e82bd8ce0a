// Package resolver expands raw URLs into concrete downloadable items. A URL
// pointing at a collection becomes one item per entry; anything else becomes
// a single item. Login-gated URLs trigger one credential prompt and one
// retry, and a cookie file that worked is kept for the rest of the session.
//
// Extraction failures degrade instead of aborting: a URL that stays
// login-gated resolves to nothing, and any other failure passes the URL
// through as a single unresolved item so the download attempt decides.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"vidgrab/internal/config"
	"vidgrab/internal/engine"
	"vidgrab/internal/entity"
	"vidgrab/internal/errs"
	"vidgrab/internal/observability"
	"vidgrab/pkg/urls"
)

// CredentialFunc asks the user for a cookie file when a URL turns out to be
// login-gated. An empty path means the user declined.
type CredentialFunc func(ctx context.Context, url string) (cookieFile string, err error)

// Resolver turns raw URLs into items via metadata-only extractions.
type Resolver struct {
	log     *slog.Logger
	eng     engine.Engine
	prompt  CredentialFunc
	metrics *observability.Metrics

	mu         sync.Mutex
	cookieFile string
}

// New creates a new resolver. The prompt may be nil, in which case
// login-gated URLs resolve to nothing.
func New(
	log *slog.Logger,
	cfg *config.Config,
	eng engine.Engine,
	prompt CredentialFunc,
	metrics *observability.Metrics,
) *Resolver {
	if metrics == nil {
		metrics = observability.New()
	}

	return &Resolver{
		log:        log.With(slog.String("package", "resolver")),
		eng:        eng,
		prompt:     prompt,
		metrics:    metrics,
		cookieFile: cfg.Dir.CookieFile,
	}
}

// Resolve expands rawURL into zero or more items. Collections are listed
// flat, so children are not resolved recursively. It returns an error only
// for unusable input or a canceled context.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) ([]entity.Item, error) {
	rawURL = urls.Normalize(rawURL)
	if rawURL == "" {
		return nil, errs.ErrEmptyURL
	}

	if !urls.HasScheme(rawURL) {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidScheme, rawURL)
	}

	opts := engine.MetadataOptions{
		FlatPlaylist: true,
		CookieFile:   r.CookieFile(),
	}

	info, err := r.eng.Metadata(ctx, rawURL, opts)
	if err != nil {
		return r.resolveFailed(ctx, rawURL, opts, err)
	}

	return r.itemsFromInfo(ctx, rawURL, info), nil
}

// resolveFailed degrades a failed extraction: the auth kind goes through the
// credential retry and is skipped when still gated, every other kind passes
// the URL through as a single unresolved item.
func (r *Resolver) resolveFailed(
	ctx context.Context,
	rawURL string,
	opts engine.MetadataOptions,
	cause error,
) ([]entity.Item, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log := r.log.With(slog.String("url", rawURL))

	if !errors.Is(cause, errs.ErrAuthRequired) {
		log.WarnContext(ctx, "extraction failed, passing url through", slog.Any("error", cause))
		r.metrics.RecordResolve("passthrough")

		return []entity.Item{entity.NewItem(rawURL, "")}, nil
	}

	log.WarnContext(ctx, "authentication required, asking for credentials", slog.Any("error", cause))

	info, err := r.retryWithCredentials(ctx, rawURL, opts, cause)
	if err != nil {
		log.WarnContext(ctx, "still gated, skipping url", slog.Any("error", err))
		r.metrics.RecordResolve("skipped")

		return nil, nil
	}

	return r.itemsFromInfo(ctx, rawURL, info), nil
}

// retryWithCredentials runs the prompt and retries the extraction once with
// the returned cookie file. The original failure comes back when the user
// declines or the file does not exist.
func (r *Resolver) retryWithCredentials(
	ctx context.Context,
	rawURL string,
	opts engine.MetadataOptions,
	cause error,
) (*engine.Info, error) {
	if r.prompt == nil {
		return nil, cause
	}

	cookieFile, err := r.prompt(ctx, rawURL)
	if err != nil || cookieFile == "" {
		return nil, cause
	}

	if _, err := os.Stat(cookieFile); err != nil {
		r.log.WarnContext(ctx, "cookie file not usable", slog.String("path", cookieFile), slog.Any("error", err))

		return nil, cause
	}

	opts.CookieFile = cookieFile

	info, err := r.eng.Metadata(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}

	r.setCookieFile(cookieFile)

	return info, nil
}

func (r *Resolver) itemsFromInfo(ctx context.Context, rawURL string, info *engine.Info) []entity.Item {
	if !info.IsCollection() {
		r.metrics.RecordResolve("single")

		return []entity.Item{entity.NewItem(rawURL, info.Title)}
	}

	items := make([]entity.Item, 0, len(info.Entries))
	for _, entry := range info.Entries {
		items = append(items, entity.NewItem(entry.URL, entry.Title))
	}

	r.log.InfoContext(ctx, "collection expanded",
		slog.String("url", rawURL),
		slog.String("title", info.Title),
		slog.Int("items", len(items)))
	r.metrics.RecordResolve("expanded")

	return items
}

// CookieFile returns the cookie file in effect for this session.
func (r *Resolver) CookieFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cookieFile
}

func (r *Resolver) setCookieFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cookieFile = path
}
