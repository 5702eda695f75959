// pkg/index/parse.go
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"assetvault/pkg/logging"
	"assetvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

/*
Manifest 格式:

	{
	  "virtual": false,
	  "objects": {
	    "icons/icon_16x16.png": {
	      "hash": "bdf48ef6b5d0d23bbb02e17d04865216179f510a",
	      "size": 3665
	    }
	  }
	}

结构必须正确 (可读、格式合法、根是 object)，单条记录则尽量宽容：
缺字段或类型不对时取零值，未知字段忽略。
*/

type options struct {
	allowComments bool
	log           logrus.FieldLogger
}

type Option func(*options)

// WithComments 接受 JSONC (注释 + 尾逗号)
func WithComments(allow bool) Option {
	return func(o *options) { o.allowComments = allow }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = logging.OrDiscard(l) }
}

func newOptions(opts []Option) *options {
	o := &options{log: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// 与 CBOR 解码共用：所有 map 都解成 map[string]any
var cborDecMode, _ = cbor.DecOptions{
	DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
	MaxNestedLevels:  64,
	MaxMapPairs:      1 << 20,
	MaxArrayElements: 1 << 20,
}.DecMode()

// Parse 解析 JSON manifest
// 失败时返回 *ParseError，且不返回任何 index
func Parse(data []byte, opts ...Option) (*AssetIndex, error) {
	o := newOptions(opts)
	root, perr := decodeJSON(data, o.allowComments)
	return o.finish("", root, perr)
}

// ParseCBOR 解析 CBOR 编码的 manifest (逻辑结构与 JSON 相同)
func ParseCBOR(data []byte, opts ...Option) (*AssetIndex, error) {
	o := newOptions(opts)
	root, perr := decodeCBOR(data)
	return o.finish("", root, perr)
}

// Read 从 reader 读取并解析 JSON manifest
func Read(r io.Reader, opts ...Option) (*AssetIndex, error) {
	o := newOptions(opts)
	data, err := io.ReadAll(r)
	if err != nil {
		return o.finish("", nil, &ParseError{Kind: SourceUnreadable, Offset: -1, Err: err})
	}
	root, perr := decodeJSON(data, o.allowComments)
	return o.finish("", root, perr)
}

// Load 读取磁盘上的 manifest
// 扩展名为 .cbor 时按 CBOR 解析，否则按 JSON
func Load(fs afero.Fs, path string, opts ...Option) (*AssetIndex, error) {
	o := newOptions(opts)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return o.finish(path, nil, &ParseError{Kind: SourceUnreadable, Offset: -1, Err: err})
	}

	var (
		root map[string]any
		perr *ParseError
	)
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		root, perr = decodeCBOR(data)
	} else {
		root, perr = decodeJSON(data, o.allowComments)
	}
	return o.finish(path, root, perr)
}

// finish 统一处理：失败时补上路径并记录日志，成功时构建 index
func (o *options) finish(path string, root map[string]any, perr *ParseError) (*AssetIndex, error) {
	if perr != nil {
		perr.Path = path
		o.log.WithFields(logrus.Fields{
			"path":   path,
			"kind":   perr.Kind.String(),
			"offset": perr.Offset,
		}).WithError(perr.Err).Error("Failed to load assets index")
		return nil, perr
	}
	return build(root), nil
}

func decodeJSON(data []byte, allowComments bool) (map[string]any, *ParseError) {
	if allowComments {
		// jsonc 用空白替换注释，偏移量保持不变
		data = jsonc.ToJSON(data)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Kind: MalformedDocument, Offset: jsonOffset(err, len(data)), Err: err}
	}

	// 顶层值之后不允许再有其它内容
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{
			Kind:   MalformedDocument,
			Offset: dec.InputOffset(),
			Err:    errors.New("unexpected data after top-level value"),
		}
	}

	return asRoot(doc)
}

func decodeCBOR(data []byte) (map[string]any, *ParseError) {
	var doc any
	if err := cborDecMode.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Kind: MalformedDocument, Offset: -1, Err: err}
	}
	return asRoot(doc)
}

func asRoot(doc any) (map[string]any, *ParseError) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Kind:   InvalidRootShape,
			Offset: -1,
			Err:    fmt.Errorf("got %s", describe(doc)),
		}
	}
	return root, nil
}

func jsonOffset(err error, size int) int64 {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return se.Offset
	}
	// io.EOF / io.ErrUnexpectedEOF: 文档在末尾被截断
	return int64(size)
}

// build 把通用的 map 转成 AssetIndex
// 走到这里时结构已经校验过，不会再失败
func build(root map[string]any) *AssetIndex {
	idx := &AssetIndex{Objects: make(map[string]AssetObject)}

	if v, ok := root["virtual"].(bool); ok {
		idx.IsVirtual = v
	}

	objects, _ := root["objects"].(map[string]any)
	for name, raw := range objects {
		fields, _ := raw.(map[string]any)

		var obj AssetObject
		if h, ok := fields["hash"].(string); ok {
			obj.Hash = types.Hash(h)
		}
		obj.Size = coerceSize(fields["size"])

		idx.Objects[name] = obj
	}
	return idx
}

// coerceSize 把各种数字表示转成 int64
// 非整数按 float64 截断；无法识别的值返回 0
func coerceSize(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return truncate(f)
		}
	case uint64:
		if n > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(n)
	case int64:
		return n
	case float64:
		return truncate(n)
	case float32:
		return truncate(float64(n))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return truncate(f)
		}
	}
	return 0
}

func truncate(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, float32, int64, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
