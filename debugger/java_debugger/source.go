package java_debugger

import (
	"fmt"

	. "github.com/fansqz/jdwp-debugger/debugger"
	. "github.com/fansqz/jdwp-debugger/debugger/utils"
	e "github.com/fansqz/jdwp-debugger/error"
)

// ParseSourceUnit 解析用户代码，找到入口类
func ParseSourceUnit(code string) (*SourceUnit, error) {
	info, err := AnalyzeJavaSource([]byte(code))
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	entry, ok := info.EntryClass()
	if !ok {
		return nil, e.ErrEntryPointNotFound
	}
	unit := &SourceUnit{
		Code:       code,
		Package:    info.Package,
		ClassName:  entry.Name,
		EntryPoint: entry.Name,
		FileName:   entry.Name + ".java",
	}
	if public, ok := info.PublicClass(); ok {
		unit.FileName = public.Name + ".java"
	}
	if info.Package != "" {
		unit.EntryPoint = info.Package + "." + entry.Name
	}
	return unit, nil
}
