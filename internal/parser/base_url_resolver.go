package parser

import (
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

// BaseURL 解析后的基础URL
type BaseURL struct {
	URL             string `json:"url"`
	ServiceLocation string `json:"serviceLocation,omitempty"`
}

// ResolveBaseURLs combines the inherited base URLs with the ones declared at
// the current level. Without declarations the inherited set passes through,
// otherwise the result is the cross product of both sets.
func ResolveBaseURLs(inherited []BaseURL, declared []ir.BaseURL) []BaseURL {
	if len(declared) == 0 {
		return inherited
	}
	if len(inherited) == 0 {
		res := make([]BaseURL, 0, len(declared))
		for _, d := range declared {
			res = append(res, BaseURL{URL: d.Value, ServiceLocation: d.ServiceLocation})
		}
		return res
	}

	res := make([]BaseURL, 0, len(inherited)*len(declared))
	for _, cur := range inherited {
		for _, d := range declared {
			serviceLocation := d.ServiceLocation
			if serviceLocation == "" {
				serviceLocation = cur.ServiceLocation
			}
			res = append(res, BaseURL{
				URL:             util.ResolveURL(cur.URL, d.Value),
				ServiceLocation: serviceLocation,
			})
		}
	}
	return res
}

func baseURLStrings(baseURLs []BaseURL) []string {
	urls := make([]string, 0, len(baseURLs))
	for _, b := range baseURLs {
		urls = append(urls, b.URL)
	}
	return urls
}
