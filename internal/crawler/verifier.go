package crawler

import (
	"context"

	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/model"
)

// verify fetches one admitted reference and merges what it yields into results.
// referrer is the response the reference was found in.
func (s *Spider) verify(ctx context.Context, ref model.Reference, referrer *model.Response, seed *model.FuzzableRequest, results *resultSet) {
	if s.filter.OnlyForward() && !s.filter.IsForward(ref.URL) {
		s.stats.notForward.Add(1)
		return
	}

	refererHeader := referrer.BaseURL()
	req := httpclient.NewGet(ref.URL)
	req.UseCache = true
	req.Header.Set("Referer", refererHeader)

	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			s.stats.fetchErrors.Add(1)
		}
		s.logger.Debug("reference fetch failed", "url", ref.String(), "error", err)
		return
	}

	if s.notFound.IsLikely404(ctx, resp) {
		s.stats.notFound.Add(1)
		results.merge(s.factory.Build(resp, seed, false))
		if ref.Tier == model.TierParsed {
			link := model.BrokenLink{URL: ref.String(), Referrer: referrer.URL.String()}
			if s.broken.add(link) {
				s.logger.Debug("broken link recorded", "url", link.URL, "referrer", link.Referrer)
			}
		}
		return
	}

	for _, fr := range s.factory.Build(resp, seed, true) {
		fr.SetHeader("Referer", refererHeader)
		results.add(fr)
	}
}
