// pkg/index/model.go
package index

import (
	"slices"

	"assetvault/pkg/storage"
	"assetvault/pkg/types"
)

// AssetObject 代表 manifest 中的一条资源记录
// Hash 与对象仓库的命名规则一致：objects/<hash[:2]>/<hash>
type AssetObject struct {
	Hash types.Hash `json:"hash"`
	Size int64      `json:"size"` // 仅供参考，来自 manifest
}

// RelativePath 返回对象相对于仓库根的路径
func (o AssetObject) RelativePath() string {
	return storage.ObjectKey(o.Hash)
}

// AssetIndex 是解析后的 manifest
// 解析完成后不再修改
type AssetIndex struct {
	IsVirtual bool                   `json:"virtual"`
	Objects   map[string]AssetObject `json:"objects"`
}

// Lookup 按逻辑名查找对象
func (i *AssetIndex) Lookup(name string) (AssetObject, bool) {
	obj, ok := i.Objects[name]
	return obj, ok
}

// ObjectPath 返回逻辑名对应的对象路径 (相对于仓库根)
func (i *AssetIndex) ObjectPath(name string) (string, bool) {
	obj, ok := i.Objects[name]
	if !ok || obj.Hash.IsZero() {
		return "", false
	}
	return obj.RelativePath(), true
}

// Names 返回排序后的逻辑名列表
func (i *AssetIndex) Names() []string {
	names := make([]string, 0, len(i.Objects))
	for name := range i.Objects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TotalSize 返回所有对象的大小之和
func (i *AssetIndex) TotalSize() int64 {
	var total int64
	for _, obj := range i.Objects {
		total += obj.Size
	}
	return total
}

// UniqueHashes 返回去重后的对象数 (多个逻辑名可以指向同一内容)
func (i *AssetIndex) UniqueHashes() int {
	seen := make(map[types.Hash]struct{}, len(i.Objects))
	for _, obj := range i.Objects {
		seen[obj.Hash] = struct{}{}
	}
	return len(seen)
}
