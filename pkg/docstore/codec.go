package docstore

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// encodeDocument 将任意值编码为 JSON 对象
func encodeDocument(data interface{}) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		if !isObject(raw) {
			return nil, ErrInvalidDocument
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if !isObject(raw) {
		return nil, ErrInvalidDocument
	}
	return raw, nil
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// mergeFields 将 fields 合并进文档顶层，值为 DeleteField 时删除对应字段
func mergeFields(doc json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
	}

	for k, v := range fields {
		if v == DeleteField {
			delete(m, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		m[k] = raw
	}

	return json.Marshal(m)
}

// normalizeValue 经 JSON 往返得到与解码文档可比较的值
func normalizeValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchFilters 判断文档是否满足全部等值条件
func matchFilters(doc json.RawMessage, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(doc, &m); err != nil {
		return false, err
	}
	for _, f := range filters {
		want, err := normalizeValue(f.Value)
		if err != nil {
			return false, err
		}
		got, ok := m[f.Field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// filterFragment 生成 {"field": value} 片段，供 JSONB 包含查询使用
func filterFragment(f Filter) (string, error) {
	raw, err := json.Marshal(map[string]interface{}{f.Field: f.Value})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func sortSnapshots(snaps []*Snapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
}
