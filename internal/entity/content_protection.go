package entity

import "bytes"

// KeyIDInfo is one key id announced for a representation
type KeyIDInfo struct {
	KeyID    []byte `json:"keyId"`
	SystemID string `json:"systemId,omitempty"`
}

// InitDataValue is one initialization-data blob for a key system
type InitDataValue struct {
	SystemID string `json:"systemId"`
	Data     []byte `json:"data"`
}

// InitData groups initialization data of the same format
type InitData struct {
	Type   string          `json:"type"`
	Values []InitDataValue `json:"values"`
}

// ContentProtections 加密信息
type ContentProtections struct {
	KeyIDs   []KeyIDInfo `json:"keyIds,omitempty"`
	InitData []InitData  `json:"initData,omitempty"`
}

// NewContentProtections 创建新的加密信息
func NewContentProtections() *ContentProtections {
	return &ContentProtections{
		KeyIDs:   make([]KeyIDInfo, 0),
		InitData: make([]InitData, 0),
	}
}

// AddKeyID adds a key id unless the same (key id, system) pair is already known
func (c *ContentProtections) AddKeyID(keyID []byte, systemID string) {
	for _, k := range c.KeyIDs {
		if k.SystemID == systemID && bytes.Equal(k.KeyID, keyID) {
			return
		}
	}
	c.KeyIDs = append(c.KeyIDs, KeyIDInfo{KeyID: keyID, SystemID: systemID})
}

// AddInitData appends a blob under the given format, skipping exact duplicates
func (c *ContentProtections) AddInitData(initDataType, systemID string, data []byte) {
	for i := range c.InitData {
		if c.InitData[i].Type != initDataType {
			continue
		}
		for _, v := range c.InitData[i].Values {
			if v.SystemID == systemID && bytes.Equal(v.Data, data) {
				return
			}
		}
		c.InitData[i].Values = append(c.InitData[i].Values, InitDataValue{SystemID: systemID, Data: data})
		return
	}
	c.InitData = append(c.InitData, InitData{
		Type:   initDataType,
		Values: []InitDataValue{{SystemID: systemID, Data: data}},
	})
}

// IsEncrypted 判断是否加密
func (c *ContentProtections) IsEncrypted() bool {
	return c != nil && (len(c.KeyIDs) > 0 || len(c.InitData) > 0)
}

// SystemIDs returns every key-system id referenced, in first-seen order
func (c *ContentProtections) SystemIDs() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, k := range c.KeyIDs {
		add(k.SystemID)
	}
	for _, d := range c.InitData {
		for _, v := range d.Values {
			add(v.SystemID)
		}
	}
	return ids
}
