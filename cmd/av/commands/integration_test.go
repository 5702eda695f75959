package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetvault/pkg/app"
	"assetvault/pkg/digest"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationEnv 搭建一个使用 真实文件系统 + SQLite 的集成环境
func setupIntegrationEnv(t *testing.T) *app.App {
	t.Helper()
	viper.Reset()

	root := filepath.Join(t.TempDir(), "assets")
	viper.Set("storage.root", root)
	viper.Set("storage.type", "disk")
	viper.Set("meta.driver", "sqlite")
	viper.Set("meta.dsn", filepath.Join(t.TempDir(), "meta.db"))

	application, err := app.NewApp(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	// 因为 cmd 包依赖全局变量 AV，我们在测试里临时覆盖它
	AV = application
	return application
}

// run 直接调用子命令的 RunE，返回 stdout
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIntegration_MigrateFlow(t *testing.T) {
	a := setupIntegrationEnv(t)

	// 1. 模拟旧缓存
	writeFile(t, filepath.Join(a.Root, "icons", "icon_16x16.png"), "icon")
	writeFile(t, filepath.Join(a.Root, "sounds", "step", "grass1.ogg"), "grass")
	writeFile(t, filepath.Join(a.Root, "sounds", "step", "grass1_copy.ogg"), "grass")
	writeFile(t, filepath.Join(a.Root, "indexes", "1.20.json"),
		`{"objects": {"icons/icon_16x16.png": {"hash": "`+digest.Sum([]byte("icon")).String()+`", "size": 4}}}`)

	// 2. av migrate
	out, err := run(t, migrateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported:   2")
	assert.Contains(t, out, "Duplicates: 1")
	assert.Contains(t, out, "Cleaned:    icons, sounds")

	// 3. 验证磁盘布局
	iconHash := digest.Sum([]byte("icon"))
	_, err = os.Stat(filepath.Join(a.Root, "objects", iconHash.Bucket(), iconHash.String()))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(a.Root, "indexes", "1.20.json"))
	require.NoError(t, err, "indexes/ must survive")
	_, err = os.Stat(filepath.Join(a.Root, "icons"))
	assert.True(t, os.IsNotExist(err))

	// 4. av migrate (再次运行：没有事情可做)
	out, err = run(t, migrateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to migrate.")

	// 5. av cat
	out, err = run(t, catCmd, iconHash.String())
	require.NoError(t, err)
	assert.Equal(t, "icon", out)

	_, err = run(t, catCmd, digest.Sum([]byte("nope")).String())
	assert.ErrorContains(t, err, "not found")

	// 6. av history
	out, err = run(t, historyCmd)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "only the first run did any work")
	fields := strings.Fields(lines[1])
	assert.Equal(t, []string{"2", "0", "1", "0"}, fields[3:7])
}

func TestIntegration_IndexShow(t *testing.T) {
	a := setupIntegrationEnv(t)

	writeFile(t, filepath.Join(a.Root, "indexes", "1.20.json"),
		`{"objects": {"a.png": {"hash": "deadbeef", "size": 10}}}`)
	writeFile(t, filepath.Join(a.Root, "indexes", "pre-1.6.json"),
		`{"virtual": true, "objects": {}}`)
	writeFile(t, filepath.Join(a.Root, "indexes", "broken.json"), `[]`)

	out, err := run(t, indexShowCmd, "1.20", "pre-1.6")
	require.NoError(t, err)
	assert.Contains(t, out, "1.20: virtual=false objects=1 unique=1 size=10B")
	assert.Contains(t, out, "pre-1.6: virtual=true objects=0 unique=0 size=0B")

	out, err = run(t, indexShowCmd, "1.20", "broken", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3")
	assert.Contains(t, out, "broken: index unusable")
	assert.Contains(t, out, "missing: index unusable")
	assert.Contains(t, out, "1.20: virtual=false")
}

func TestIntegration_IndexShowCached(t *testing.T) {
	a := setupIntegrationEnv(t)

	// 1. 一次解析多个文件，账本记录全部落库
	names := []string{"1.17", "1.18", "1.19", "1.20", "1.21", "1.22"}
	for _, name := range names {
		writeFile(t, filepath.Join(a.Root, "indexes", name+".json"),
			`{"objects": {"a.png": {"hash": "deadbeef", "size": 10}, "b.png": {"hash": "cafebabe", "size": 5}}}`)
	}
	_, err := run(t, indexShowCmd, names...)
	require.NoError(t, err)

	// 2. 删除文件后仍能通过 --cached 看到摘要
	require.NoError(t, os.RemoveAll(filepath.Join(a.Root, "indexes")))
	showCached = true
	t.Cleanup(func() { showCached = false })

	out, err := run(t, indexShowCmd, names...)
	require.NoError(t, err)
	for _, name := range names {
		assert.Contains(t, out, name+": virtual=false objects=2 unique=2 size=15B loaded=")
	}

	// 3. 从未加载过的 manifest
	out, err = run(t, indexShowCmd, "1.20", "1.99")
	assert.ErrorContains(t, err, "1 of 2 index files never loaded")
	assert.Contains(t, out, "1.99: not loaded yet")
}

func TestIntegration_IndexShowCached_LedgerDisabled(t *testing.T) {
	viper.Reset()
	viper.Set("storage.root", filepath.Join(t.TempDir(), "assets"))
	viper.Set("storage.type", "disk")

	application, err := app.NewApp(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	AV = application

	showCached = true
	t.Cleanup(func() { showCached = false })

	_, err = run(t, indexShowCmd, "1.20")
	assert.ErrorIs(t, err, app.ErrLedgerDisabled)
}

func TestIntegration_IndexBucket(t *testing.T) {
	setupIntegrationEnv(t)

	hash := digest.Sum([]byte("icon"))
	out, err := run(t, indexBucketCmd, hash.String())
	require.NoError(t, err)
	assert.Contains(t, out, "bucket: "+hash.Bucket())
	assert.Contains(t, out, "path:   objects/"+hash.Bucket()+"/"+hash.String())
	assert.Contains(t, out, "state:  missing")

	_, err = run(t, indexBucketCmd, "xyz")
	assert.ErrorContains(t, err, "invalid hash")

	_, err = run(t, indexBucketCmd, "abcd")
	assert.ErrorContains(t, err, "not a sha1 digest")
}

func TestIntegration_CatRejectsInvalidHash(t *testing.T) {
	a := setupIntegrationEnv(t)
	require.NoError(t, a.Store.EnsureRoot(context.Background()))

	// 1. 仓库根旁边放一个不该被读到的文件
	writeFile(t, filepath.Join(filepath.Dir(a.Root), "secret.txt"), "top secret")

	// 2. 各种穿越路径都被拒绝，且不输出任何内容
	for _, arg := range []string{"../secret.txt", "../../secret.txt", "objects/../../secret.txt"} {
		out, err := run(t, catCmd, arg)
		assert.ErrorContains(t, err, "invalid hash", arg)
		assert.Empty(t, out, arg)
	}

	// 3. 合法十六进制但长度不对
	_, err := run(t, catCmd, "abcd")
	assert.ErrorContains(t, err, "not a sha1 digest")
}

func TestIntegration_Init(t *testing.T) {
	a := setupIntegrationEnv(t)

	out, err := run(t, initCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized object store in "+a.Root)

	info, err := os.Stat(filepath.Join(a.Root, "objects"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// TestExecute 走完整的 cobra 流程 (配置加载 + App 组装)
func TestExecute(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	root := filepath.Join(t.TempDir(), "assets")
	writeFile(t, filepath.Join(root, "icons", "a.png"), "png")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"migrate", "--root", root, "--log-level", "debug"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		AV = nil
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Imported:   1")
	assert.Contains(t, errOut.String(), "Finished importing legacy assets")

	hash := digest.Sum([]byte("png"))
	_, err := os.Stat(filepath.Join(root, "objects", hash.Bucket(), hash.String()))
	assert.NoError(t, err)
}
