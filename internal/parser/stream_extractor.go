package parser

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/index"
	"mpdcore/internal/tree"
	"mpdcore/internal/util"
)

// maxResourceRounds bounds how many times a parse may ask for resources,
// xlinks can reference further xlinks
const maxResourceRounds = 8

// ErrTooManyResourceRounds the manifest keeps asking for resources
var ErrTooManyResourceRounds = errors.New("too many external resource rounds")

// Fetcher loads the bytes at url. It returns the final URL after
// redirections.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
	FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error)
}

// httpFetcher adapts util.HTTPUtil, with retries
type httpFetcher struct {
	http  *util.HTTPUtil
	retry util.RetryConfig
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return f.http.GetBytesWithRetry(ctx, url, f.retry)
}

func (f *httpFetcher) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	var data []byte
	err := util.DoRetry(ctx, func() error {
		var err error
		data, err = f.http.GetRange(ctx, url, start, end)
		return err
	}, f.retry)
	return data, err
}

// NewHTTPFetcher 基于HTTPUtil的Fetcher
func NewHTTPFetcher(httpUtil *util.HTTPUtil, retry util.RetryConfig) Fetcher {
	if httpUtil == nil {
		httpUtil = util.DefaultHTTPUtil
	}
	return &httpFetcher{http: httpUtil, retry: retry}
}

// StreamExtractor 流提取器: loads an MPD, answers the resource requests
// of the parser and loads the sidx of SegmentBase representations
type StreamExtractor struct {
	fetcher   Fetcher
	tokenizer tree.Tokenizer
	opts      Options
}

// NewStreamExtractor 创建流提取器. opts.ManifestURL is overwritten by
// every extraction.
func NewStreamExtractor(fetcher Fetcher, opts Options) *StreamExtractor {
	tokenizer := opts.Tokenizer
	if tokenizer == nil {
		tokenizer = tree.XMLTokenizer{}
	}
	return &StreamExtractor{fetcher: fetcher, tokenizer: tokenizer, opts: opts}
}

// ExtractManifest 获取并解析MPD
func (e *StreamExtractor) ExtractManifest(ctx context.Context, url string) (*ParseResult, error) {
	util.Logger.Info("正在提取流信息: %s", url)
	data, finalURL, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("获取内容失败: %w", err)
	}
	util.Logger.Debug("最终URL: %s", finalURL)
	util.Logger.Debug("内容长度: %d", len(data))
	return e.ParseManifest(ctx, data, finalURL)
}

// ParseManifest parses MPD bytes loaded from manifestURL, fetching what
// the parser asks for
func (e *StreamExtractor) ParseManifest(ctx context.Context, data []byte, manifestURL string) (*ParseResult, error) {
	root, err := e.tokenizer.Tokenize(data)
	if err != nil {
		return nil, fmt.Errorf("解析XML失败: %w", err)
	}

	opts := e.opts
	opts.ManifestURL = manifestURL
	result, err := NewDASHParser(opts).Parse(root)
	if err != nil {
		return nil, err
	}

	for round := 0; !result.Done(); round++ {
		if round >= maxResourceRounds {
			return nil, ErrTooManyResourceRounds
		}
		responses := e.fetchResources(ctx, result.Requests)
		if result, err = result.Continue(responses); err != nil {
			return nil, err
		}
	}

	e.loadSegmentIndexes(ctx, result.Manifest)
	return result, nil
}

// Refresh re-fetches the manifest and merges it into m. Dynamic manifests
// are updated, keeping the segment history, static ones replaced.
func (e *StreamExtractor) Refresh(ctx context.Context, m *entity.Manifest) error {
	if len(m.URIs) == 0 {
		return errors.New("manifest has no URL to refresh from")
	}
	result, err := e.ExtractManifest(ctx, m.URIs[0])
	if err != nil {
		return err
	}
	MergeManifest(m, result.Manifest)
	return nil
}

// MergeManifest 合并新解析的MPD: update when m is dynamic, replace otherwise
func MergeManifest(m, newer *entity.Manifest) {
	if m.IsDynamic {
		m.Update(newer)
	} else {
		m.Replace(newer)
	}
}

func (e *StreamExtractor) fetchResources(ctx context.Context, requests []ResourceRequest) []ResourceResponse {
	responses := make([]ResourceResponse, len(requests))
	var g errgroup.Group
	for i, req := range requests {
		g.Go(func() error {
			util.Logger.Info("获取%s资源: %s", req.Type, req.URL)
			data, finalURL, err := e.fetcher.Fetch(ctx, req.URL)
			responses[i] = ResourceResponse{Data: data, URL: finalURL, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return responses
}

// loadSegmentIndexes fetches the sidx box of every SegmentBase index.
// Failures leave the index uninitialized.
func (e *StreamExtractor) loadSegmentIndexes(ctx context.Context, m *entity.Manifest) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, period := range m.Periods {
		for _, adaptation := range period.GetAdaptations() {
			for _, rep := range adaptation.Representations {
				idx, ok := rep.Index.(*index.BaseIndex)
				if !ok || idx.IsInitialized() {
					continue
				}
				init := idx.InitSegment()
				if init == nil || init.IndexRange == nil || len(init.MediaURLs) == 0 {
					continue
				}
				g.Go(func() error {
					rng := init.IndexRange
					data, err := e.fetcher.FetchRange(gctx, init.MediaURLs[0], rng.Start, rng.End)
					if err != nil {
						util.Logger.Warn("获取sidx失败 %s: %s", rep.ID, err.Error())
						return nil
					}
					if err := idx.InitializeFromSidx(data, rng.Start); err != nil {
						util.Logger.Warn("解析sidx失败 %s: %s", rep.ID, err.Error())
					}
					return nil
				})
			}
		}
	}
	_ = g.Wait()
}
