package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/naming"
)

// ShowFinder is the catalog lookup used to correct show names.
type ShowFinder interface {
	SearchTV(ctx context.Context, query string) (*catalog.Show, error)
}

// ResolveShowName picks the show name for sourceDir. An explicit name
// always wins; a catalog match that disagrees is only logged. Otherwise the
// name is derived from the directory and replaced by the catalog's name
// when finder (which may be nil) has a match. Catalog errors are logged and
// never fatal. The returned name is safe to use in a file name.
func ResolveShowName(ctx context.Context, finder ShowFinder, log zerolog.Logger, explicit, sourceDir string) (string, *catalog.Show) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		match := search(ctx, finder, log, explicit)
		if match != nil && match.Name != explicit {
			log.Info().
				Str(logging.FieldShow, explicit).
				Str("catalog_name", match.Name).
				Msg("catalog name differs from the given name; keeping the given name")
		}
		return naming.SanitizeShowName(explicit), match
	}

	name := naming.DeriveShowName(sourceDir)
	if name == "" {
		name = filepath.Base(filepath.Clean(sourceDir))
	}
	log.Info().Str(logging.FieldDir, sourceDir).Str(logging.FieldShow, name).Msg("derived show name")

	match := search(ctx, finder, log, name)
	if match != nil && match.Name != "" && match.Name != name {
		log.Info().Str(logging.FieldShow, name).Str("catalog_name", match.Name).Msg("show name corrected by catalog")
		name = match.Name
	}
	return naming.SanitizeShowName(name), match
}

func search(ctx context.Context, finder ShowFinder, log zerolog.Logger, query string) *catalog.Show {
	if finder == nil {
		return nil
	}
	match, err := finder.SearchTV(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str(logging.FieldShow, query).Msg("catalog lookup failed")
		return nil
	}
	return match
}
