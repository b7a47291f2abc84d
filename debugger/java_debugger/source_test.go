package java_debugger

import (
	"testing"

	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceUnit(t *testing.T) {
	unit, err := ParseSourceUnit(DemoCode)
	require.NoError(t, err)
	assert.Equal(t, "MyMainClass", unit.ClassName)
	assert.Equal(t, "MyMainClass", unit.EntryPoint)
	assert.Equal(t, DemoCode, unit.Code)

	unit, err = ParseSourceUnit("package org.example;\npublic class App {\n  public static void main(String[] args) {}\n}\n")
	require.NoError(t, err)
	assert.Equal(t, "org.example", unit.Package)
	assert.Equal(t, "App", unit.ClassName)
	assert.Equal(t, "App.java", unit.SourceFileName())
	assert.Equal(t, "org.example.App", unit.EntryPoint)

	// public类没有main时，源文件以public类命名，入口仍然是声明了main的类
	unit, err = ParseSourceUnit("public class Foo {\n  int value() { return 1; }\n}\nclass Bar {\n  public static void main(String[] args) {}\n}\n")
	require.NoError(t, err)
	assert.Equal(t, "Bar", unit.ClassName)
	assert.Equal(t, "Bar", unit.EntryPoint)
	assert.Equal(t, "Foo.java", unit.SourceFileName())

	// 只有非public类时以入口类命名
	unit, err = ParseSourceUnit("class Helper {}\nclass Main {\n  public static void main(String[] args) {}\n}\n")
	require.NoError(t, err)
	assert.Equal(t, "Main.java", unit.SourceFileName())

	_, err = ParseSourceUnit("public class Lib { void run() {} }")
	assert.ErrorIs(t, err, e.ErrEntryPointNotFound)
}

func TestMaskPath(t *testing.T) {
	message := "/var/work/abc/MyMainClass.java:3: error: ';' expected"
	assert.Equal(t, "/MyMainClass.java:3: error: ';' expected", maskPath(message, []string{"/var/work/abc"}, "/"))
	assert.Equal(t, "", maskPath("", []string{"/var/work/abc"}, "/"))
}
