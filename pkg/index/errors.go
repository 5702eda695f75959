package index

import (
	"errors"
	"fmt"
)

// ErrorKind 区分三种结构性失败
type ErrorKind int

const (
	SourceUnreadable  ErrorKind = iota + 1 // 读不到字节
	MalformedDocument                      // 字节不是合法的 JSON/CBOR
	InvalidRootShape                       // 根节点不是 object
)

var (
	ErrSourceUnreadable = errors.New("assets index unreadable")
	ErrMalformed        = errors.New("assets index malformed")
	ErrInvalidRoot      = errors.New("assets index root should be an object")
)

func (k ErrorKind) String() string {
	switch k {
	case SourceUnreadable:
		return "source unreadable"
	case MalformedDocument:
		return "malformed document"
	case InvalidRootShape:
		return "invalid root shape"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case SourceUnreadable:
		return ErrSourceUnreadable
	case MalformedDocument:
		return ErrMalformed
	case InvalidRootShape:
		return ErrInvalidRoot
	default:
		return nil
	}
}

// ParseError 表示 manifest 不可用
// 用 errors.Is(err, ErrMalformed) 之类的方式判断种类
type ParseError struct {
	Kind   ErrorKind
	Path   string // 为空表示直接解析内存中的字节
	Offset int64  // 出错的字节偏移，-1 表示未知
	Err    error
}

func (e *ParseError) Error() string {
	msg := "assets index"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.String()
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf 提取错误种类
func KindOf(err error) (ErrorKind, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
