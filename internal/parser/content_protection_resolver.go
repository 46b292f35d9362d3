package parser

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"

	"mpdcore/internal/entity"
	"mpdcore/internal/metrics"
	"mpdcore/internal/parser/ir"
	"mpdcore/internal/util"
)

const cencInitDataType = "cenc"

type pendingProtection struct {
	representation *entity.Representation
	element        *ir.ContentProtection
}

// ContentProtectionResolver attaches ContentProtection elements to their
// representation. Elements referencing another one by cenc:ref wait until
// the referenced element (cenc:refId) has been resolved.
type ContentProtectionResolver struct {
	resolved map[string]*ir.ContentProtection
	pending  []pendingProtection
	metrics  *metrics.Metrics
}

// NewContentProtectionResolver 创建加密信息解析器
func NewContentProtectionResolver(m *metrics.Metrics) *ContentProtectionResolver {
	return &ContentProtectionResolver{
		resolved: make(map[string]*ir.ContentProtection),
		metrics:  m,
	}
}

// Add hands the ContentProtection elements of rep to the resolver
func (c *ContentProtectionResolver) Add(rep *entity.Representation, elements []*ir.ContentProtection) {
	for _, cp := range elements {
		if cp == nil {
			continue
		}
		merged, ok := c.resolve(cp)
		if !ok {
			c.pending = append(c.pending, pendingProtection{representation: rep, element: cp})
			continue
		}
		c.store(rep, merged)
	}
}

// Pending returns how many elements still wait for their reference
func (c *ContentProtectionResolver) Pending() int {
	return len(c.pending)
}

// Finalize force-resolves what is still pending with the data at hand
func (c *ContentProtectionResolver) Finalize() {
	for len(c.pending) > 0 {
		p := c.pending[0]
		c.pending = c.pending[1:]
		util.Logger.Warn("ContentProtection: reference %q not found, using partial data", p.element.Attributes.Ref)
		c.metrics.IncForcedProtections()
		c.store(p.representation, c.merge(p.element, c.resolved[p.element.Attributes.Ref]))
	}
}

func (c *ContentProtectionResolver) resolve(cp *ir.ContentProtection) (*ir.ContentProtection, bool) {
	ref := cp.Attributes.Ref
	if ref == "" {
		return cp, true
	}
	referenced, ok := c.resolved[ref]
	if !ok {
		return nil, false
	}
	return c.merge(cp, referenced), true
}

// merge fills what cp leaves undeclared with the values of referenced
func (c *ContentProtectionResolver) merge(cp, referenced *ir.ContentProtection) *ir.ContentProtection {
	res := &ir.ContentProtection{
		Attributes: cp.Attributes,
		Pssh:       append([][]byte(nil), cp.Pssh...),
	}
	if referenced == nil {
		return res
	}
	if res.Attributes.SchemeIDURI == "" {
		res.Attributes.SchemeIDURI = referenced.Attributes.SchemeIDURI
	}
	if res.Attributes.Value == "" {
		res.Attributes.Value = referenced.Attributes.Value
	}
	if res.Attributes.KeyID == nil {
		res.Attributes.KeyID = referenced.Attributes.KeyID
	}
	if len(res.Pssh) == 0 {
		res.Pssh = append(res.Pssh, referenced.Pssh...)
	}
	return res
}

func (c *ContentProtectionResolver) store(rep *entity.Representation, cp *ir.ContentProtection) {
	attachContentProtection(rep, cp)
	if cp.Attributes.RefID == "" {
		return
	}
	c.resolved[cp.Attributes.RefID] = cp
	c.retryPending()
}

// retryPending loops until a pass resolves nothing, a resolution may
// complete a chain of references
func (c *ContentProtectionResolver) retryPending() {
	for {
		progress := false
		remaining := c.pending[:0:0]
		for _, p := range c.pending {
			merged, ok := c.resolve(p.element)
			if !ok {
				remaining = append(remaining, p)
				continue
			}
			progress = true
			attachContentProtection(p.representation, merged)
			if merged.Attributes.RefID != "" {
				c.resolved[merged.Attributes.RefID] = merged
			}
		}
		c.pending = remaining
		if !progress {
			return
		}
	}
}

func attachContentProtection(rep *entity.Representation, cp *ir.ContentProtection) {
	if rep.ContentProtections == nil {
		rep.ContentProtections = entity.NewContentProtections()
	}
	systemID := systemIDFromScheme(cp.Attributes.SchemeIDURI)

	for _, data := range cp.Pssh {
		psshSystemID, err := systemIDFromPssh(data)
		if err != nil {
			util.Logger.Warn("ContentProtection: invalid cenc:pssh: %s", err.Error())
			continue
		}
		id := systemID
		if id == "" {
			id = psshSystemID
		}
		rep.ContentProtections.AddInitData(cencInitDataType, id, data)
	}

	if cp.Attributes.KeyID != nil {
		rep.ContentProtections.AddKeyID(cp.Attributes.KeyID, systemID)
	}
}

// systemIDFromScheme extracts the hex system id of a urn:uuid: scheme
func systemIDFromScheme(scheme string) string {
	const prefix = "urn:uuid:"
	if len(scheme) <= len(prefix) || !strings.EqualFold(scheme[:len(prefix)], prefix) {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(scheme[len(prefix):], "-", ""))
}

func systemIDFromPssh(data []byte) (string, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	pssh, ok := box.(*mp4.PsshBox)
	if !ok {
		return "", errNotPssh
	}
	return hex.EncodeToString(pssh.SystemID[:]), nil
}
