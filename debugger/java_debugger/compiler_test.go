package java_debugger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/fansqz/jdwp-debugger/debugger"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowJavac 一直运行直到被杀死的编译器
func slowJavac(t *testing.T) string {
	file := filepath.Join(t.TempDir(), "javac")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\nexec sleep 10\n"), 0755))
	return file
}

func TestJavaCompilerCancelled(t *testing.T) {
	compiler := NewJavaCompiler(slowJavac(t), nil, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	unit, err := ParseSourceUnit(DemoCode)
	require.NoError(t, err)
	_, err = compiler.Compile(ctx, t.TempDir(), unit)
	assert.ErrorIs(t, err, context.Canceled)
	var compileErr *e.CompileError
	assert.False(t, errors.As(err, &compileErr))
}

func TestJavaCompilerTimeout(t *testing.T) {
	compiler := NewJavaCompiler(slowJavac(t), nil, 100*time.Millisecond)
	unit, err := ParseSourceUnit(DemoCode)
	require.NoError(t, err)
	_, err = compiler.Compile(context.Background(), t.TempDir(), unit)
	var compileErr *e.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, -1, compileErr.ExitCode)
}

func TestJavaCompilerSourceFileName(t *testing.T) {
	file := filepath.Join(t.TempDir(), "javac")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\nexit 0\n"), 0755))
	compiler := NewJavaCompiler(file, nil, time.Minute)

	workPath := t.TempDir()
	artifact, err := compiler.Compile(context.Background(), workPath, &SourceUnit{
		Code:       "public class Foo {}\nclass Bar { public static void main(String[] a) {} }\n",
		ClassName:  "Bar",
		EntryPoint: "Bar",
		FileName:   "Foo.java",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workPath, "Foo.java"), artifact.SourceFile)
	assert.FileExists(t, artifact.SourceFile)
	assert.Equal(t, "Bar", artifact.EntryPoint)
	assert.Equal(t, filepath.Join(workPath, "Bar.class"), artifact.ClassFile)
}
