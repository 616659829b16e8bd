package crawler

import (
	"context"
	"net/url"

	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
	"github.com/nao1215/webspider/internal/workerpool"
)

// Fetcher performs HTTP requests.
type Fetcher interface {
	Fetch(ctx context.Context, req *httpclient.Request) (*model.Response, error)
}

// DocumentParser extracts references from a response.
// It returns parser.ErrNoParser (or any error) when it cannot handle the body.
type DocumentParser interface {
	Parse(resp *model.Response) (parsed, heuristic []*url.URL, err error)
}

// RequestFactory turns a response into fuzzable requests.
type RequestFactory interface {
	Build(resp *model.Response, seed *model.FuzzableRequest, includeSelf bool) []*model.FuzzableRequest
}

// NotFoundClassifier detects "not found" answers, including soft 404 pages.
type NotFoundClassifier interface {
	IsLikely404(ctx context.Context, resp *model.Response) bool
}

// FormFiller picks a value for a blank form field.
type FormFiller interface {
	FillValue(name string) string
}

// Pool runs verifier tasks with bounded concurrency.
type Pool interface {
	NewBatch(ctx context.Context) *workerpool.Batch
}

// TargetSource provides the scan targets.
type TargetSource interface {
	TargetRoots() []*url.URL
	TargetDomain() string
}
