package feed

import (
	"context"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/fetch"
	"supplierhub_api/internal/supplierhub/business/services/parse"
	"supplierhub_api/pkg/logger"
)

type httpFetcher interface {
	Fetch(ctx context.Context, url string, auth fetch.AuthConfig, headers, query map[string]string) ([]byte, string, error)
}

// Loader fetches a source's feed and hands it to the parser matching
// the resolved content type.
type Loader struct {
	http httpFetcher
	log  logger.Logger
}

func NewLoader(http httpFetcher, log logger.Logger) *Loader {
	return &Loader{http: http, log: log}
}

// Load returns the record stream and the resolved feed format
// (csv|json|xml). The response Content-Type wins over the source's
// declared file type.
func (l *Loader) Load(ctx context.Context, src *models.Source) (*parse.Stream, string, error) {
	auth := fetch.AuthConfig{Type: src.AuthType, Login: src.AuthLogin}
	switch src.AuthType {
	case "basic":
		auth.Secret = src.AuthPassword
	case "bearer", "header", "query":
		auth.Secret = src.AuthToken
	}

	body, mediaType, err := l.http.Fetch(ctx, src.URL, auth, src.Headers, src.QueryParams)
	if err != nil {
		return nil, "", err
	}

	format := parse.ResolveFormat(mediaType, src.FileType)
	parser, err := parse.NewParser(format)
	if err != nil {
		return nil, format, err
	}

	stream, err := parser.Parse(body, parse.Hints{
		Delimiter: src.Delimiter,
		Enclosure: src.Enclosure,
		ItemsPath: src.ItemsPath,
		ItemXPath: src.ItemXPath,
	})
	if err != nil {
		return nil, format, err
	}
	return stream, format, nil
}
