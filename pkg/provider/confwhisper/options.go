package confwhisper

import (
	"log/slog"
	"maps"
	"net/http"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/ohttp"
	"github.com/rhuss/confwhisper/pkg/retry"
)

// Options configures a Handler. They are copied at construction.
type Options struct {
	// BaseURL is the backend API root including the version segment.
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Headers are added to every backend request.
	Headers map[string]string

	// ModelID is sent as the request model. It is also used to detect the
	// model family.
	ModelID string

	// ModelInfo overrides the assumed model metadata.
	ModelInfo *api.ModelInfo

	// ReasoningEffort is sent to reasoning-family models. Empty means
	// "medium".
	ReasoningEffort string

	// Retry controls retries of the streaming call. Nil uses
	// retry.DefaultPolicy.
	Retry *retry.Policy

	// OHTTP enables Oblivious HTTP. Nil leaves it off.
	OHTTP *ohttp.Config

	// Transport carries backend requests (or, with OHTTP wrapping, relay
	// requests). Nil uses http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

func (o Options) clone() Options {
	c := o
	c.Headers = maps.Clone(o.Headers)
	if o.ModelInfo != nil {
		info := *o.ModelInfo
		if o.ModelInfo.Temperature != nil {
			t := *o.ModelInfo.Temperature
			info.Temperature = &t
		}
		c.ModelInfo = &info
	}
	if o.Retry != nil {
		p := *o.Retry
		c.Retry = &p
	}
	if o.OHTTP != nil {
		cfg := *o.OHTTP
		c.OHTTP = &cfg
	}
	return c
}
